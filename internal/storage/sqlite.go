// Package storage handles database connections, schema migrations, and data operations using SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/woozymasta/q3query/internal/models"
	_ "modernc.org/sqlite" // Driver sqlite
)

// serverColumns is the column list shared by every server SELECT, in scanServer order.
const serverColumns = `
	address, host, port, country_code, hostname, clean_name, map_name, game_type, game_name, version,
	players, max_players, online, count, first_seen, last_seen, last_online`

// Repository manages the SQLite database connection.
type Repository struct {
	db *sql.DB
}

// New initializes a new SQLite connection, sets connection pool parameters, and runs migrations.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// UpsertServer records a poll result for a server identified by its address.
// An online snapshot replaces every stored field and the player list; an offline one
// only flags the server as down and keeps the last known details.
func (r *Repository) UpsertServer(s models.Server) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var lastOnline any
	if s.Online {
		lastOnline = s.LastSeen
	}

	_, err = tx.Exec(`
	INSERT INTO servers (
		address, host, port, country_code, hostname, clean_name, map_name, game_type, game_name, version,
		players, max_players, online, count, first_seen, last_seen, last_online
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
	ON CONFLICT(address) DO UPDATE SET
		count = count + 1,
		last_seen = excluded.last_seen,
		online = excluded.online,

		-- Update country if resolved
		country_code = CASE WHEN excluded.country_code != '' THEN excluded.country_code ELSE servers.country_code END,

		-- Snapshot fields only when the server answered
		hostname    = CASE WHEN excluded.online THEN excluded.hostname ELSE servers.hostname END,
		clean_name  = CASE WHEN excluded.online THEN excluded.clean_name ELSE servers.clean_name END,
		map_name    = CASE WHEN excluded.online THEN excluded.map_name ELSE servers.map_name END,
		game_type   = CASE WHEN excluded.online THEN excluded.game_type ELSE servers.game_type END,
		game_name   = CASE WHEN excluded.online THEN excluded.game_name ELSE servers.game_name END,
		version     = CASE WHEN excluded.online THEN excluded.version ELSE servers.version END,
		players     = CASE WHEN excluded.online THEN excluded.players ELSE 0 END,
		max_players = CASE WHEN excluded.online THEN excluded.max_players ELSE servers.max_players END,
		last_online = CASE WHEN excluded.online THEN excluded.last_online ELSE servers.last_online END;
	`,
		s.Address, s.Host, s.Port, s.CountryCode, s.Hostname, s.CleanName, s.MapName, s.GameType, s.GameName, s.Version,
		s.Players, s.MaxPlayers, s.Online, s.FirstSeen, s.LastSeen, lastOnline,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert server %s: %w", s.Address, err)
	}

	if _, err := tx.Exec(`DELETE FROM players WHERE address = ?`, s.Address); err != nil {
		return fmt.Errorf("failed to clear players of %s: %w", s.Address, err)
	}

	if s.Online {
		for i, p := range s.PlayerList {
			if _, err := tx.Exec(
				`INSERT INTO players (address, position, name, clean_name, score, ping) VALUES (?, ?, ?, ?, ?, ?)`,
				s.Address, i, p.Name, p.CleanName, p.Score, p.Ping,
			); err != nil {
				return fmt.Errorf("failed to insert player of %s: %w", s.Address, err)
			}
		}
	}

	return tx.Commit()
}

// GetServers retrieves all servers without players, most recently polled first.
func (r *Repository) GetServers() ([]models.Server, error) {
	return r.queryServers(`SELECT` + serverColumns + ` FROM servers ORDER BY last_seen DESC`)
}

// GetServersSubset retrieves servers for maintenance.
// If onlyOffline is true, it returns only servers that did not answer their last poll.
func (r *Repository) GetServersSubset(onlyOffline bool) ([]models.Server, error) {
	query := `SELECT` + serverColumns + ` FROM servers`
	if onlyOffline {
		query += ` WHERE online = 0`
	}

	return r.queryServers(query)
}

// GetServer retrieves a server and its players by address.
// It returns nil without error when the server is unknown.
func (r *Repository) GetServer(address string) (*models.Server, error) {
	row := r.db.QueryRow(`SELECT`+serverColumns+` FROM servers WHERE address = ?`, address)

	s, err := scanServer(row)
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(
		`SELECT name, clean_name, score, ping FROM players WHERE address = ? ORDER BY position`, address)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.Name, &p.CleanName, &p.Score, &p.Ping); err != nil {
			return nil, err
		}
		s.PlayerList = append(s.PlayerList, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &s, nil
}

// DeleteServer removes a server and its players.
func (r *Repository) DeleteServer(address string) error {
	_, err := r.db.Exec(`DELETE FROM servers WHERE address = ?`, address)
	return err
}

// DeleteOfflineServers removes servers that did not answer their last poll.
func (r *Repository) DeleteOfflineServers() (int64, error) {
	res, err := r.db.Exec(`DELETE FROM servers WHERE online = 0`)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (r *Repository) queryServers(query string, args ...any) ([]models.Server, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var servers []models.Server
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			continue
		}
		servers = append(servers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (models.Server, error) {
	var (
		s          models.Server
		lastOnline sql.NullTime
	)

	err := row.Scan(
		&s.Address, &s.Host, &s.Port, &s.CountryCode, &s.Hostname, &s.CleanName, &s.MapName, &s.GameType, &s.GameName, &s.Version,
		&s.Players, &s.MaxPlayers, &s.Online, &s.Count, &s.FirstSeen, &s.LastSeen, &lastOnline,
	)
	if lastOnline.Valid {
		s.LastOnline = lastOnline.Time
	}

	return s, err
}
