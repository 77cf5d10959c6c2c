package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/models"
)

const (
	infoBuildID      = "build_id"
	infoCount        = "count"
	infoDimension    = "dimension"
	infoCreatedAt    = "created_at"
	infoChunkSize    = "chunk_size"
	infoChunkOverlap = "chunk_overlap"
)

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS index_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		ordinal INTEGER PRIMARY KEY,
		file_path TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		text TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
	`
	_, err := db.Exec(schema)
	return err
}

// writeMetadata creates a fresh database at path. The file is renamed into place
// once closed, so the rollback journal is used instead of WAL.
func writeMetadata(path string, m Manifest, chunks []models.Chunk) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}
	if err := initSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	info := map[string]string{
		infoBuildID:      m.BuildID.String(),
		infoCount:        strconv.Itoa(len(chunks)),
		infoDimension:    strconv.Itoa(m.Dimension),
		infoCreatedAt:    m.CreatedAt.UTC().Format(time.RFC3339Nano),
		infoChunkSize:    strconv.Itoa(m.ChunkSize),
		infoChunkOverlap: strconv.Itoa(m.ChunkOverlap),
	}
	for k, v := range info {
		if _, err := tx.ExecContext(ctx, `INSERT INTO index_info (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert index_info %s: %w", k, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (ordinal, file_path, chunk_index, total_chunks, start_offset, end_offset, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, i, c.SourceID, c.ChunkIndex, c.TotalChunks, c.Start, c.End, c.Text); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func readMetadata(path string) (Manifest, []models.Chunk, error) {
	var m Manifest
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return m, nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	info := make(map[string]string)
	rows, err := db.Query(`SELECT key, value FROM index_info`)
	if err != nil {
		return m, nil, apperr.Corruptf(path, "read index_info: %v", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return m, nil, apperr.Corruptf(path, "scan index_info: %v", err)
		}
		info[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return m, nil, apperr.Corruptf(path, "read index_info: %v", err)
	}

	if m.BuildID, err = uuid.Parse(info[infoBuildID]); err != nil {
		return m, nil, apperr.Corruptf(path, "invalid build id %q", info[infoBuildID])
	}
	for key, dst := range map[string]*int{
		infoCount:        &m.Count,
		infoDimension:    &m.Dimension,
		infoChunkSize:    &m.ChunkSize,
		infoChunkOverlap: &m.ChunkOverlap,
	} {
		n, err := strconv.Atoi(info[key])
		if err != nil {
			return m, nil, apperr.Corruptf(path, "invalid %s %q", key, info[key])
		}
		*dst = n
	}
	if ts, err := time.Parse(time.RFC3339Nano, info[infoCreatedAt]); err == nil {
		m.CreatedAt = ts
	}

	rows, err = db.Query(`SELECT ordinal, file_path, chunk_index, total_chunks, start_offset, end_offset, text
		FROM chunks ORDER BY ordinal`)
	if err != nil {
		return m, nil, apperr.Corruptf(path, "read chunks: %v", err)
	}
	defer rows.Close()
	chunks := make([]models.Chunk, 0, m.Count)
	for rows.Next() {
		var ordinal int
		var c models.Chunk
		if err := rows.Scan(&ordinal, &c.SourceID, &c.ChunkIndex, &c.TotalChunks, &c.Start, &c.End, &c.Text); err != nil {
			return m, nil, apperr.Corruptf(path, "scan chunk: %v", err)
		}
		if ordinal != len(chunks) {
			return m, nil, apperr.Corruptf(path, "chunk ordinals are not contiguous: expected %d, found %d", len(chunks), ordinal)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return m, nil, apperr.Corruptf(path, "read chunks: %v", err)
	}
	return m, chunks, nil
}
