package archive

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Postgres serves archives from an archived_games table mirrored from chess.com.
// Archive identifiers are "YYYY/MM".
//
//	CREATE TABLE archived_games (
//	    url            TEXT PRIMARY KEY,
//	    username       TEXT NOT NULL,
//	    pgn            TEXT NOT NULL,
//	    white_username TEXT NOT NULL,
//	    white_rating   INT  NOT NULL DEFAULT 0,
//	    white_result   TEXT NOT NULL DEFAULT '',
//	    black_username TEXT NOT NULL,
//	    black_rating   INT  NOT NULL DEFAULT 0,
//	    black_result   TEXT NOT NULL DEFAULT '',
//	    time_class     TEXT NOT NULL DEFAULT '',
//	    time_control   TEXT NOT NULL DEFAULT '',
//	    end_time       TIMESTAMPTZ NOT NULL
//	);
type Postgres struct {
	db   *sql.DB
	user string
}

func NewPostgres(databaseURL, user string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("ARCHIVE_DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db, user: strings.ToLower(strings.TrimSpace(user))}, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Postgres) Archives(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT to_char(end_time AT TIME ZONE 'UTC', 'YYYY/MM') AS month
		FROM archived_games
		WHERE lower(username) = $1
		ORDER BY month`

	rows, err := p.db.QueryContext(ctx, query, p.user)
	if err != nil {
		return nil, fmt.Errorf("select archives: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var month string
		if err := rows.Scan(&month); err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		out = append(out, month)
	}
	return out, rows.Err()
}

func (p *Postgres) Games(ctx context.Context, archive string) ([]Summary, error) {
	month := monthOf(archive)
	if month == "" {
		return nil, ErrNotFound
	}
	const query = `
		SELECT
			url,
			pgn,
			white_username,
			white_rating,
			white_result,
			black_username,
			black_rating,
			black_result,
			time_class,
			time_control,
			end_time
		FROM archived_games
		WHERE lower(username) = $1
		  AND to_char(end_time AT TIME ZONE 'UTC', 'YYYY/MM') = $2
		ORDER BY end_time`

	rows, err := p.db.QueryContext(ctx, query, p.user, month)
	if err != nil {
		return nil, fmt.Errorf("select archived games: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			s           Summary
			timeControl string
		)
		if err := rows.Scan(
			&s.URL,
			&s.PGN,
			&s.White.Username,
			&s.White.Rating,
			&s.White.Result,
			&s.Black.Username,
			&s.Black.Rating,
			&s.Black.Result,
			&s.TimeClass,
			&timeControl,
			&s.EndTime,
		); err != nil {
			return nil, fmt.Errorf("scan archived game: %w", err)
		}
		s.TimeControl = formatTimeControl(timeControl)
		s.White.Avatar = defaultAvatar
		s.Black.Avatar = defaultAvatar
		finish(&s, p.user)
		out = append(out, s)
	}
	return out, rows.Err()
}

// monthOf accepts "YYYY/MM" or a chess.com archive URL ending in ".../YYYY/MM".
func monthOf(archive string) string {
	parts := strings.Split(strings.Trim(strings.TrimSpace(archive), "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	y, m := parts[len(parts)-2], parts[len(parts)-1]
	if len(y) != 4 || len(m) != 2 {
		return ""
	}
	return y + "/" + m
}
