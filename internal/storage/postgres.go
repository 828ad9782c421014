package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sabr2007/Neural-Inbox1/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

// PostgresStorage stores items, projects and links in Postgres. Embeddings
// live in a pgvector column queried with the cosine distance operator.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

const itemColumns = `id, user_id, type, status, title, content, original_input, source,
	due_at, due_at_raw, priority, project_id, tags, recurrence, attachment_file_id,
	created_at, updated_at, completed_at`

func (s *PostgresStorage) CreateItems(ctx context.Context, items []*models.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO items (id, user_id, type, status, title, content, original_input, source,
			due_at, due_at_raw, priority, project_id, tags, recurrence, attachment_file_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`

	for _, item := range items {
		var recurrence any
		if item.Recurrence != nil {
			data, err := json.Marshal(item.Recurrence)
			if err != nil {
				return fmt.Errorf("error encoding recurrence: %w", err)
			}
			recurrence = string(data)
		}

		err := tx.QueryRowContext(ctx, query,
			item.ID,
			item.UserID,
			item.Type,
			item.Status,
			item.Title,
			nullString(item.Content),
			nullString(item.OriginalInput),
			nullString(string(item.Source)),
			item.DueAt,
			nullString(item.DueAtRaw),
			nullString(string(item.Priority)),
			nullString(item.ProjectID),
			pq.Array(item.Tags),
			recurrence,
			nullString(item.AttachmentID),
		).Scan(&item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error creating item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing items: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, itemID)
	return scanItem(row)
}

func (s *PostgresStorage) UpdateItem(ctx context.Context, item *models.Item) error {
	var recurrence any
	if item.Recurrence != nil {
		data, err := json.Marshal(item.Recurrence)
		if err != nil {
			return fmt.Errorf("error encoding recurrence: %w", err)
		}
		recurrence = string(data)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET type = $2, status = $3, title = $4, content = $5, due_at = $6, due_at_raw = $7,
			priority = $8, project_id = $9, tags = $10, recurrence = $11,
			completed_at = $12, updated_at = now()
		WHERE id = $1`,
		item.ID,
		item.Type,
		item.Status,
		item.Title,
		nullString(item.Content),
		item.DueAt,
		nullString(item.DueAtRaw),
		nullString(string(item.Priority)),
		nullString(item.ProjectID),
		pq.Array(item.Tags),
		recurrence,
		item.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("error updating item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) CompleteItem(ctx context.Context, itemID string) (*models.Item, error) {
	// The status guard makes concurrent completions race-safe: only one
	// caller observes a row transition to done.
	row := s.db.QueryRowContext(ctx, `
		UPDATE items
		SET status = 'done', completed_at = now(), updated_at = now()
		WHERE id = $1 AND status != 'done'
		RETURNING `+itemColumns, itemID)

	item, err := scanItem(row)
	if err == ErrNotFound {
		// Distinguish missing from already-done.
		var status string
		checkErr := s.db.QueryRowContext(ctx,
			`SELECT status FROM items WHERE id = $1`, itemID).Scan(&status)
		if checkErr == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if checkErr != nil {
			return nil, fmt.Errorf("error checking item status: %w", checkErr)
		}
		return nil, ErrAlreadyDone
	}
	return item, err
}

func (s *PostgresStorage) ListRecent(ctx context.Context, userID int64, limit int) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying recent items: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (s *PostgresStorage) ListByStatus(ctx context.Context, userID int64, status models.ItemStatus, limit int) ([]*models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT $3`, userID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying items by status: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

func (s *PostgresStorage) ListProjects(ctx context.Context, userID int64) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.user_id, p.name, COALESCE(p.color, ''), COALESCE(p.emoji, ''),
			COUNT(i.id), p.created_at
		FROM projects p
		LEFT JOIN items i ON i.project_id = p.id
		WHERE p.user_id = $1
		GROUP BY p.id
		ORDER BY p.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Color, &p.Emoji, &p.ItemCount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *PostgresStorage) CreateProject(ctx context.Context, project *models.Project) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, user_id, name, color, emoji)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		project.ID, project.UserID, project.Name,
		nullString(project.Color), nullString(project.Emoji),
	).Scan(&project.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating project: %w", err)
	}
	return nil
}

func (s *PostgresStorage) UpdateItemEmbedding(ctx context.Context, itemID string, embedding []float32) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET embedding = $2::vector,
			status = CASE WHEN status = 'processing' THEN 'inbox' ELSE status END,
			updated_at = now()
		WHERE id = $1`, itemID, formatVector(embedding))
	if err != nil {
		return fmt.Errorf("error updating embedding: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) SearchSimilar(ctx context.Context, userID int64, embedding []float32, limit int) ([]ScoredItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`, 1 - (embedding <=> $2::vector) AS score
		FROM items
		WHERE user_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2::vector
		LIMIT $3`, userID, formatVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("error querying similar items: %w", err)
	}
	defer rows.Close()
	return scanScoredItems(rows)
}

func (s *PostgresStorage) FindSimilar(ctx context.Context, itemID string, limit int, minScore float64) ([]ScoredItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i2.id, i2.user_id, i2.type, i2.status, i2.title, i2.content, i2.original_input,
			i2.source, i2.due_at, i2.due_at_raw, i2.priority, i2.project_id, i2.tags,
			i2.recurrence, i2.attachment_file_id, i2.created_at, i2.updated_at, i2.completed_at,
			1 - (i1.embedding <=> i2.embedding) AS score
		FROM items i1
		JOIN items i2 ON i1.user_id = i2.user_id AND i1.id != i2.id
		WHERE i1.id = $1
			AND i1.embedding IS NOT NULL
			AND i2.embedding IS NOT NULL
			AND 1 - (i1.embedding <=> i2.embedding) >= $2
		ORDER BY i1.embedding <=> i2.embedding
		LIMIT $3`, itemID, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying related items: %w", err)
	}
	defer rows.Close()
	return scanScoredItems(rows)
}

func (s *PostgresStorage) CreateLink(ctx context.Context, link *models.ItemLink) (bool, error) {
	// The unique index over (LEAST, GREATEST) makes the insert idempotent
	// for both orderings of the pair.
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO item_links (id, item_id, related_item_id, link_type, confidence, confirmed, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ((LEAST(item_id, related_item_id)), (GREATEST(item_id, related_item_id)))
			DO NOTHING
		RETURNING created_at`,
		link.ID, link.ItemID, link.RelatedItemID,
		nullString(link.LinkType), link.Confidence, link.Confirmed, nullString(link.Reason))

	err := row.Scan(&link.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error creating link: %w", err)
	}
	return true, nil
}

func (s *PostgresStorage) ListLinks(ctx context.Context, itemID string) ([]*models.ItemLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, related_item_id, COALESCE(link_type, ''), confidence, confirmed,
			COALESCE(reason, ''), created_at
		FROM item_links
		WHERE item_id = $1 OR related_item_id = $1
		ORDER BY created_at`, itemID)
	if err != nil {
		return nil, fmt.Errorf("error querying links: %w", err)
	}
	defer rows.Close()

	var links []*models.ItemLink
	for rows.Next() {
		link := &models.ItemLink{}
		var confidence sql.NullFloat64
		err := rows.Scan(&link.ID, &link.ItemID, &link.RelatedItemID, &link.LinkType,
			&confidence, &link.Confirmed, &link.Reason, &link.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning link: %w", err)
		}
		if confidence.Valid {
			link.Confidence = &confidence.Float64
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(...any) error
}

func scanItem(row rowScanner, extra ...any) (*models.Item, error) {
	item := &models.Item{}
	var content, originalInput, source, dueAtRaw, priority, projectID, attachment, recurrence sql.NullString
	var dueAt, completedAt sql.NullTime

	dest := []any{
		&item.ID, &item.UserID, &item.Type, &item.Status, &item.Title,
		&content, &originalInput, &source, &dueAt, &dueAtRaw, &priority,
		&projectID, pq.Array(&item.Tags), &recurrence, &attachment,
		&item.CreatedAt, &item.UpdatedAt, &completedAt,
	}
	dest = append(dest, extra...)
	err := row.Scan(dest...)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning item: %w", err)
	}

	item.Content = content.String
	item.OriginalInput = originalInput.String
	item.Source = models.Source(source.String)
	item.DueAtRaw = dueAtRaw.String
	item.Priority = models.Priority(priority.String)
	item.ProjectID = projectID.String
	item.AttachmentID = attachment.String
	if dueAt.Valid {
		t := dueAt.Time
		item.DueAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		item.CompletedAt = &t
	}
	if recurrence.Valid {
		rule := &models.RecurrenceRule{}
		if err := json.Unmarshal([]byte(recurrence.String), rule); err != nil {
			return nil, fmt.Errorf("error decoding recurrence: %w", err)
		}
		item.Recurrence = rule
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]*models.Item, error) {
	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanScoredItems(rows *sql.Rows) ([]ScoredItem, error) {
	var out []ScoredItem
	for rows.Next() {
		var score float64
		item, err := scanItem(rows, &score)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredItem{Item: item, Score: score})
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// formatVector renders a pgvector literal like [0.1,0.2,...].
func formatVector(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
