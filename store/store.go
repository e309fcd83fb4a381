// Package store keeps the history of batch runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"nlmdof"
	"nlmdof/result"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// Run 一次批处理
type Run struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Project   string // 工程文件
	Dir       string // 结果目录
	Stories   int
	Total     int // 选择的地震动数
	Completed int // 已计算的地震动数
	Diverged  int
	Cancelled bool
	Err       string // 使批处理停止的错误
}

// Motion 一条地震动的计算结果
type Motion struct {
	RunID     string
	Index     int // 从 1 开始
	Name      string
	State     string // converged / failed
	Time      float64
	Duration  float64
	Steps     int
	Failures  int
	T1        float64 // 基本周期
	PeakDrift float64 // 最大层间位移
	PeakAccel float64 // 最大楼层绝对加速度(g)
}

// NewMotion 由分析结果得到记录，r 为 nil 时不记录峰值
func NewMotion(index int, rep *nlmdof.Report, r *result.Results, g float64) Motion {
	m := Motion{
		Index:    index,
		Name:     rep.Name(),
		State:    rep.Outcome.State.String(),
		Time:     rep.Outcome.Time,
		Duration: rep.Outcome.Duration,
		Steps:    rep.Outcome.Steps,
		Failures: rep.Outcome.Failures,
	}
	if len(rep.Periods) > 0 {
		m.T1 = rep.Periods[0]
	}
	if r != nil {
		m.PeakDrift = maxOf(r.DriftEnvelope())
		if g > 0 {
			m.PeakAccel = maxOf(r.AccelEnvelope()) / g
		}
	}
	return m
}

func maxOf(v []float64) float64 {
	out := 0.0
	for _, x := range v {
		out = math.Max(out, x)
	}
	return out
}

// Store wraps SQLite access for run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			project TEXT NOT NULL,
			dir TEXT NOT NULL,
			stories INTEGER NOT NULL,
			total INTEGER NOT NULL,
			completed INTEGER NOT NULL,
			diverged INTEGER NOT NULL,
			cancelled INTEGER NOT NULL,
			err TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS motions (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			name TEXT NOT NULL,
			state TEXT NOT NULL,
			time REAL NOT NULL,
			duration REAL NOT NULL,
			steps INTEGER NOT NULL,
			failures INTEGER NOT NULL,
			t1 REAL NOT NULL,
			peak_drift REAL NOT NULL,
			peak_accel REAL NOT NULL,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ended_at ON runs(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_motions_name ON motions(name);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun 保存一次批处理及其地震动，ID 为空时生成新的 ID
func (s *Store) InsertRun(ctx context.Context, run Run, motions []Motion) (id string, err error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, ended_at, project, dir, stories, total, completed, diverged, cancelled, err)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.Format(time.RFC3339Nano),
		run.EndedAt.Format(time.RFC3339Nano),
		run.Project,
		run.Dir,
		run.Stories,
		run.Total,
		run.Completed,
		run.Diverged,
		run.Cancelled,
		run.Err,
	)
	if err != nil {
		return "", err
	}

	if len(motions) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO motions (run_id, idx, name, state, time, duration, steps, failures, t1, peak_drift, peak_accel)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return "", err
		}
		defer func() { _ = stmt.Close() }()
		for _, m := range motions {
			if _, err := stmt.ExecContext(ctx, run.ID, m.Index, m.Name, m.State, m.Time, m.Duration,
				m.Steps, m.Failures, m.T1, m.PeakDrift, m.PeakAccel); err != nil {
				return "", err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return run.ID, nil
}

// ListRuns 按结束时间倒序返回最近 limit 次批处理，limit<=0 时返回全部
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, ended_at, project, dir, stories, total, completed, diverged, cancelled, err
		FROM runs ORDER BY ended_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun 按 ID 读取批处理
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, ended_at, project, dir, stories, total, completed, diverged, cancelled, err
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var startedAt, endedAt string
	if err := sc.Scan(&run.ID, &startedAt, &endedAt, &run.Project, &run.Dir, &run.Stories,
		&run.Total, &run.Completed, &run.Diverged, &run.Cancelled, &run.Err); err != nil {
		return Run{}, err
	}
	var err error
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return Run{}, err
	}
	if run.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListMotions 返回一次批处理的全部地震动，按顺序
func (s *Store) ListMotions(ctx context.Context, runID string) ([]Motion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, idx, name, state, time, duration, steps, failures, t1, peak_drift, peak_accel
		FROM motions WHERE run_id = ? ORDER BY idx ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var motions []Motion
	for rows.Next() {
		var m Motion
		if err := rows.Scan(&m.RunID, &m.Index, &m.Name, &m.State, &m.Time, &m.Duration,
			&m.Steps, &m.Failures, &m.T1, &m.PeakDrift, &m.PeakAccel); err != nil {
			return nil, err
		}
		motions = append(motions, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return motions, nil
}

// DeleteRun 删除批处理及其地震动
func (s *Store) DeleteRun(ctx context.Context, id string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = fmt.Errorf("%s: %w", id, ErrNotFound)
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM motions WHERE run_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
