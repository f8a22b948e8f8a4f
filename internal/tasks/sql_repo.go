package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("github.com/s1natex/task-manager-api/internal/tasks")

var schemas = map[string]string{
	"sqlite": `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status INTEGER NOT NULL DEFAULT 0,
	priority TEXT NOT NULL,
	created_date TEXT NOT NULL,
	due_date TEXT NOT NULL DEFAULT ''
)`,
	"mysql": `
CREATE TABLE IF NOT EXISTS tasks (
	id BIGINT PRIMARY KEY AUTO_INCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	status TINYINT NOT NULL DEFAULT 0,
	priority VARCHAR(10) NOT NULL,
	created_date VARCHAR(10) NOT NULL,
	due_date VARCHAR(255) NOT NULL DEFAULT ''
)`,
}

// taskRow is the persisted shape; status is stored as 0/1.
type taskRow struct {
	ID          int64  `db:"id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	Status      int64  `db:"status"`
	Priority    string `db:"priority"`
	CreatedDate string `db:"created_date"`
	DueDate     string `db:"due_date"`
}

func (r taskRow) task() Task {
	return Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status != 0,
		Priority:    Priority(r.Priority),
		CreatedDate: r.CreatedDate,
		DueDate:     r.DueDate,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const selectColumns = `SELECT id, title, description, status, priority, created_date, due_date FROM tasks`

// SQLRepo stores tasks in a single SQL table. Every call takes its own
// connection from the pool and returns it before the call ends.
type SQLRepo struct {
	db     *sqlx.DB
	driver string
	now    Clock
}

// NewSQLRepo opens driver ("sqlite" or "mysql") at dsn.
func NewSQLRepo(driver, dsn string) (*SQLRepo, error) {
	return NewSQLRepoWithClock(driver, dsn, time.Now)
}

func NewSQLRepoWithClock(driver, dsn string, now Clock) (*SQLRepo, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	if driver == "mysql" {
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return nil, fmt.Errorf("mysql dsn: %w", err)
		}
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return &SQLRepo{db: db, driver: driver, now: now}, nil
}

func (r *SQLRepo) Close() error { return r.db.Close() }

// EnsureSchema creates the tasks table when it does not exist yet.
func (r *SQLRepo) EnsureSchema(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", r.driver, err)
	}
	if _, err := r.db.ExecContext(ctx, schemas[r.driver]); err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}
	return nil
}

// withConn runs fn on a dedicated connection inside a span named op.
func (r *SQLRepo) withConn(ctx context.Context, op string, fn func(ctx context.Context, conn *sqlx.Conn) error) (err error) {
	ctx, span := tracer.Start(ctx, "tasks."+op, trace.WithAttributes(
		attribute.String("db.system", r.driver),
	))
	defer func() {
		if err != nil && !IsClientError(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	conn, err := r.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	return fn(ctx, conn)
}

func (r *SQLRepo) List(ctx context.Context) ([]Task, error) {
	out := []Task{}
	err := r.withConn(ctx, "list", func(ctx context.Context, conn *sqlx.Conn) error {
		var rows []taskRow
		if err := conn.SelectContext(ctx, &rows, selectColumns+` ORDER BY created_date DESC, id DESC`); err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		for _, row := range rows {
			out = append(out, row.task())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLRepo) Get(ctx context.Context, id int64) (Task, error) {
	var t Task
	err := r.withConn(ctx, "get", func(ctx context.Context, conn *sqlx.Conn) error {
		var err error
		t, err = selectTask(ctx, conn, id)
		return err
	})
	return t, err
}

func selectTask(ctx context.Context, conn *sqlx.Conn, id int64) (Task, error) {
	var row taskRow
	err := conn.GetContext(ctx, &row, selectColumns+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return row.task(), nil
}

func (r *SQLRepo) Create(ctx context.Context, in NewTask) (Task, error) {
	in, err := in.normalize()
	if err != nil {
		return Task{}, err
	}

	t := Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      false,
		Priority:    in.Priority,
		CreatedDate: today(r.now),
		DueDate:     in.DueDate,
	}
	err = r.withConn(ctx, "create", func(ctx context.Context, conn *sqlx.Conn) error {
		res, err := conn.ExecContext(ctx, `
			INSERT INTO tasks (title, description, status, priority, created_date, due_date)
			VALUES (?, ?, ?, ?, ?, ?)
		`, t.Title, t.Description, boolToInt(t.Status), string(t.Priority), t.CreatedDate, t.DueDate)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		t.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (r *SQLRepo) Update(ctx context.Context, id int64, p Patch) (Task, error) {
	var next Task
	err := r.withConn(ctx, "update", func(ctx context.Context, conn *sqlx.Conn) error {
		cur, err := selectTask(ctx, conn, id)
		if err != nil {
			return err
		}
		next, err = p.Apply(cur)
		if err != nil {
			return err
		}
		_, err = conn.ExecContext(ctx, `
			UPDATE tasks
			SET title = ?, description = ?, status = ?, priority = ?, due_date = ?
			WHERE id = ?
		`, next.Title, next.Description, boolToInt(next.Status), string(next.Priority), next.DueDate, id)
		if err != nil {
			return fmt.Errorf("update task %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return next, nil
}

func (r *SQLRepo) Delete(ctx context.Context, id int64) error {
	return r.withConn(ctx, "delete", func(ctx context.Context, conn *sqlx.Conn) error {
		if _, err := selectTask(ctx, conn, id); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete task %d: %w", id, err)
		}
		return nil
	})
}

// SQLiteFileDSN builds a modernc.org/sqlite DSN for path, creating its
// directory: file:/absolute/path?_pragma=busy_timeout(5000)&...
func SQLiteFileDSN(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file:" + filepath.ToSlash(abs) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", nil
}
