package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	cardmodels "cardfeed/internal/cards/models"
	dErrors "cardfeed/pkg/domainerrors"
)

// PostgresStore persists cards in PostgreSQL. Filter columns are projected
// into dedicated columns so the archived query predicate runs store-side;
// the full card travels as a JSON payload column.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed card store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS cards (
	id                  TEXT PRIMARY KEY,
	uid                 TEXT NOT NULL,
	parent_card_id      TEXT NOT NULL DEFAULT '',
	publish_date        TIMESTAMPTZ NOT NULL,
	start_date          TIMESTAMPTZ NOT NULL,
	end_date            TIMESTAMPTZ,
	payload             JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS archived_cards (
	seq                 BIGSERIAL PRIMARY KEY,
	uid                 TEXT NOT NULL UNIQUE,
	card_id             TEXT NOT NULL,
	publisher           TEXT NOT NULL,
	publisher_type      TEXT NOT NULL,
	process             TEXT NOT NULL,
	process_instance_id TEXT NOT NULL,
	process_version     TEXT NOT NULL DEFAULT '',
	state               TEXT NOT NULL,
	process_state_key   TEXT NOT NULL,
	severity            TEXT NOT NULL DEFAULT '',
	title               TEXT NOT NULL DEFAULT '',
	parent_card_id      TEXT NOT NULL DEFAULT '',
	publish_date        TIMESTAMPTZ NOT NULL,
	start_date          TIMESTAMPTZ NOT NULL,
	end_date            TIMESTAMPTZ,
	user_recipients     TEXT[] NOT NULL DEFAULT '{}',
	group_recipients    TEXT[] NOT NULL DEFAULT '{}',
	entity_recipients   TEXT[] NOT NULL DEFAULT '{}',
	payload             JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS archived_cards_publish_date_idx
	ON archived_cards (publish_date DESC, seq);
CREATE INDEX IF NOT EXISTS archived_cards_process_state_idx
	ON archived_cards (process_state_key);
`

// EnsureSchema creates the card tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure card schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, card *cardmodels.Card) error {
	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cards (id, uid, parent_card_id, publish_date, start_date, end_date, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			uid = EXCLUDED.uid,
			parent_card_id = EXCLUDED.parent_card_id,
			publish_date = EXCLUDED.publish_date,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			payload = EXCLUDED.payload`,
		card.ID, card.UID, card.ParentCardID, card.PublishDate, card.StartDate,
		nullTime(card.EndDate), payload)
	if err != nil {
		return fmt.Errorf("upsert card: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO archived_cards (
			uid, card_id, publisher, publisher_type, process, process_instance_id,
			process_version, state, process_state_key, severity, title, parent_card_id,
			publish_date, start_date, end_date,
			user_recipients, group_recipients, entity_recipients, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		card.UID, card.ID, card.Publisher, string(card.PublisherType), card.Process,
		card.ProcessInstanceID, card.ProcessVersion, card.State, card.ProcessStateKey(),
		string(card.Severity), card.Title, card.ParentCardID,
		card.PublishDate, card.StartDate, nullTime(card.EndDate),
		pq.Array(orEmpty(card.UserRecipients)), pq.Array(orEmpty(card.GroupRecipients)),
		pq.Array(orEmpty(card.EntityRecipients)), payload)
	if err != nil {
		return fmt.Errorf("archive card: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*cardmodels.Card, error) {
	return s.scanPayload(
		s.db.QueryRowContext(ctx, `SELECT payload FROM cards WHERE id = $1`, id), id)
}

func (s *PostgresStore) FindArchivedByUID(ctx context.Context, uid string) (*cardmodels.Card, error) {
	return s.scanPayload(
		s.db.QueryRowContext(ctx, `SELECT payload FROM archived_cards WHERE uid = $1`, uid), uid)
}

func (s *PostgresStore) FindChildren(ctx context.Context, parentID string) ([]*cardmodels.Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM cards WHERE parent_card_id = $1`, parentID)
	if err != nil {
		return nil, fmt.Errorf("find children: %w", err)
	}
	defer rows.Close()
	return scanCards(rows)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dErrors.Newf(dErrors.CodeNotFound, "card %s not found", id)
	}
	return nil
}

func (s *PostgresStore) ApplyAck(ctx context.Context, uid, login string, entities []string, cancel bool) error {
	return s.mutateCurrentByUID(ctx, uid, func(card *cardmodels.Card) {
		if cancel {
			card.UsersAcks = removeString(card.UsersAcks, login)
			for _, e := range entities {
				card.EntitiesAcks = removeString(card.EntitiesAcks, e)
			}
			return
		}
		card.UsersAcks = appendUnique(card.UsersAcks, login)
		for _, e := range entities {
			card.EntitiesAcks = appendUnique(card.EntitiesAcks, e)
		}
	})
}

func (s *PostgresStore) MarkRead(ctx context.Context, uid, login string) error {
	return s.mutateCurrentByUID(ctx, uid, func(card *cardmodels.Card) {
		card.UsersReads = appendUnique(card.UsersReads, login)
	})
}

func (s *PostgresStore) FindCurrentInRange(ctx context.Context, from, to, updatedFrom time.Time) ([]*cardmodels.Card, error) {
	var (
		where []string
		args  []any
	)
	if !to.IsZero() {
		args = append(args, to)
		where = append(where, fmt.Sprintf("start_date <= $%d", len(args)))
	}
	if !from.IsZero() {
		args = append(args, from)
		where = append(where, fmt.Sprintf("(end_date IS NULL OR end_date >= $%d)", len(args)))
	}
	if !updatedFrom.IsZero() {
		args = append(args, updatedFrom)
		where = append(where, fmt.Sprintf("publish_date >= $%d", len(args)))
	}
	query := `SELECT payload FROM cards`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find cards in range: %w", err)
	}
	defer rows.Close()
	return scanCards(rows)
}

// QueryArchived compiles the visibility clause plus the declarative filters
// to SQL, so pagination and counting run in the database.
func (s *PostgresStore) QueryArchived(ctx context.Context, spec QuerySpec) ([]*cardmodels.Card, int64, error) {
	where, args, err := buildArchivedWhere(spec)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM archived_cards WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count archived cards: %w", err)
	}

	pageQuery := fmt.Sprintf(
		`SELECT payload FROM archived_cards WHERE %s ORDER BY publish_date DESC, seq LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, spec.Size, spec.Page*spec.Size)

	rows, err := s.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query archived cards: %w", err)
	}
	defer rows.Close()
	cards, err := scanCards(rows)
	if err != nil {
		return nil, 0, err
	}
	return cards, total, nil
}

// buildArchivedWhere renders the visibility rules 2-6 and the column filters
// as one AND-joined WHERE clause.
func buildArchivedWhere(spec QuerySpec) (string, []any, error) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	v := spec.Visibility
	clauses = append(clauses, fmt.Sprintf("process_state_key = ANY(%s)", arg(pq.Array(orEmpty(v.ReceivableKeys)))))

	login := arg(v.Login)
	groups := arg(pq.Array(orEmpty(v.Groups)))
	entities := arg(pq.Array(orEmpty(v.Entities)))
	clauses = append(clauses, fmt.Sprintf(`(
		%s = ANY(user_recipients)
		OR (
			(cardinality(group_recipients) > 0 OR cardinality(entity_recipients) > 0)
			AND (cardinality(group_recipients) = 0 OR group_recipients && %s)
			AND (cardinality(entity_recipients) = 0 OR entity_recipients && %s)
		)
		OR (publisher_type = 'ENTITY' AND publisher = ANY(%s))
		OR (publisher_type = 'USER' AND publisher = %s)
	)`, login, groups, entities, entities, login))

	for _, f := range spec.Filters {
		clause, err := filterClause(f, arg)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " AND "), args, nil
}

func filterClause(f cardmodels.Filter, arg func(any) string) (string, error) {
	switch f.ColumnName {
	case cardmodels.ColumnPublishDateFrom:
		t, ok := parseEpochMillis(f.Values)
		if !ok {
			return "", dErrors.Newf(dErrors.CodeBadRequest, "invalid %s filter", f.ColumnName)
		}
		return fmt.Sprintf("publish_date >= %s", arg(t)), nil
	case cardmodels.ColumnPublishDateTo:
		t, ok := parseEpochMillis(f.Values)
		if !ok {
			return "", dErrors.Newf(dErrors.CodeBadRequest, "invalid %s filter", f.ColumnName)
		}
		return fmt.Sprintf("publish_date <= %s", arg(t)), nil
	case cardmodels.ColumnActiveFrom:
		t, ok := parseEpochMillis(f.Values)
		if !ok {
			return "", dErrors.Newf(dErrors.CodeBadRequest, "invalid %s filter", f.ColumnName)
		}
		return fmt.Sprintf("(end_date IS NULL OR end_date >= %s)", arg(t)), nil
	case cardmodels.ColumnActiveTo:
		t, ok := parseEpochMillis(f.Values)
		if !ok {
			return "", dErrors.Newf(dErrors.CodeBadRequest, "invalid %s filter", f.ColumnName)
		}
		return fmt.Sprintf("start_date <= %s", arg(t)), nil
	}

	column, ok := sqlColumn(f.ColumnName)
	if !ok {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown filter column %q", f.ColumnName)
	}
	if column == "publish_date" || column == "start_date" {
		t, ok := parseEpochMillis(f.Values)
		if !ok {
			return "", dErrors.Newf(dErrors.CodeBadRequest, "invalid %s filter", f.ColumnName)
		}
		switch f.MatchType {
		case cardmodels.MatchGreaterThan:
			return fmt.Sprintf("%s > %s", column, arg(t)), nil
		case cardmodels.MatchLessThan:
			return fmt.Sprintf("%s < %s", column, arg(t)), nil
		default:
			return fmt.Sprintf("%s = %s", column, arg(t)), nil
		}
	}

	switch f.MatchType {
	case cardmodels.MatchGreaterThan:
		if len(f.Values) != 1 {
			return "", dErrors.Newf(dErrors.CodeBadRequest, "filter %s expects one value", f.ColumnName)
		}
		return fmt.Sprintf("%s > %s", column, arg(f.Values[0])), nil
	case cardmodels.MatchLessThan:
		if len(f.Values) != 1 {
			return "", dErrors.Newf(dErrors.CodeBadRequest, "filter %s expects one value", f.ColumnName)
		}
		return fmt.Sprintf("%s < %s", column, arg(f.Values[0])), nil
	default:
		return fmt.Sprintf("%s = ANY(%s)", column, arg(pq.Array(f.Values))), nil
	}
}

func sqlColumn(name string) (string, bool) {
	switch name {
	case "publisher":
		return "publisher", true
	case "publisherType":
		return "publisher_type", true
	case "process":
		return "process", true
	case "processInstanceId":
		return "process_instance_id", true
	case "processVersion":
		return "process_version", true
	case "state":
		return "state", true
	case "severity":
		return "severity", true
	case "title":
		return "title", true
	case "parentCardId":
		return "parent_card_id", true
	case "publishDate":
		return "publish_date", true
	case "startDate":
		return "start_date", true
	default:
		return "", false
	}
}

// mutateCurrentByUID rewrites the current card payload under a transaction.
// Ack and read sets also land on the matching archive row so archived queries
// reflect them.
func (s *PostgresStore) mutateCurrentByUID(ctx context.Context, uid string, mutate func(*cardmodels.Card)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin card mutation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var payload []byte
	err = tx.QueryRowContext(ctx,
		`SELECT payload FROM cards WHERE uid = $1 FOR UPDATE`, uid).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return dErrors.Newf(dErrors.CodeNotFound, "card %s not found", uid)
	}
	if err != nil {
		return fmt.Errorf("load card for mutation: %w", err)
	}

	var card cardmodels.Card
	if err := json.Unmarshal(payload, &card); err != nil {
		return fmt.Errorf("unmarshal card %s: %w", uid, err)
	}
	mutate(&card)
	updated, err := json.Marshal(&card)
	if err != nil {
		return fmt.Errorf("marshal card %s: %w", uid, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE cards SET payload = $1 WHERE uid = $2`, updated, uid); err != nil {
		return fmt.Errorf("update card %s: %w", uid, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE archived_cards SET payload = $1 WHERE uid = $2`, updated, uid); err != nil {
		return fmt.Errorf("update archived card %s: %w", uid, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit card mutation: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanPayload(row *sql.Row, ref string) (*cardmodels.Card, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "card %s not found", ref)
		}
		return nil, fmt.Errorf("load card %s: %w", ref, err)
	}
	var card cardmodels.Card
	if err := json.Unmarshal(payload, &card); err != nil {
		return nil, fmt.Errorf("unmarshal card %s: %w", ref, err)
	}
	return &card, nil
}

func scanCards(rows *sql.Rows) ([]*cardmodels.Card, error) {
	var out []*cardmodels.Card
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan card payload: %w", err)
		}
		var card cardmodels.Card
		if err := json.Unmarshal(payload, &card); err != nil {
			return nil, fmt.Errorf("unmarshal card payload: %w", err)
		}
		out = append(out, &card)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
