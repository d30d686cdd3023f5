// Package knowledge is the Postgres-backed store of versioned design
// knowledge, with its write-time validation and lifecycle.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"design-workers/internal/common/aws"
	apperrors "design-workers/internal/common/errors"
	"design-workers/internal/common/logger"
	"design-workers/internal/common/metrics"
	"design-workers/internal/governance"
	"design-workers/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const objectColumns = `id, parent_id, kind, title, body, tags, version, status, quality_score, embedding, created_at, updated_at`

// Indexer mirrors objects into the tag search index.
type Indexer interface {
	IndexObject(ctx context.Context, obj models.KnowledgeObject) error
}

// EventPublisher announces status transitions.
type EventPublisher interface {
	PublishGovernanceEvent(ctx context.Context, event aws.GovernanceEvent) error
}

type StoreConfig struct {
	MaxBodyTokens    int
	MinQuality       float64
	CanonicalPrompts []string
}

// Store persists KnowledgeObjects. Every write is a single transaction that
// also appends to knowledge_audit, so a rejected write leaves no trace.
type Store struct {
	db     *sql.DB
	index  Indexer
	events EventPublisher
	cfg    StoreConfig
	logger logger.Logger
	now    func() time.Time
}

// NewStore builds a store. index and events may be nil.
func NewStore(db *sql.DB, index Indexer, events EventPublisher, cfg StoreConfig, log logger.Logger) *Store {
	if cfg.MaxBodyTokens <= 0 {
		cfg.MaxBodyTokens = DefaultMaxBodyTokens
	}
	return &Store{
		db:     db,
		index:  index,
		events: events,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "knowledge-store"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new experimental object at version 1.0.0 unless a version
// is given.
func (s *Store) Create(ctx context.Context, obj models.KnowledgeObject) (*models.KnowledgeObject, error) {
	now := s.now()
	if obj.ID == "" {
		obj.ID = uuid.New().String()
	}
	if obj.Version == "" {
		obj.Version = "1.0.0"
	}
	obj.Status = models.StatusExperimental
	obj.CreatedAt = now
	obj.UpdatedAt = &now

	if err := Validate(obj, s.cfg.MaxBodyTokens); err != nil {
		return nil, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertObject(ctx, tx, obj); err != nil {
			return err
		}
		return audit(ctx, tx, obj.ID, "create", map[string]interface{}{"version": obj.Version, "kind": obj.Kind})
	})
	if err != nil {
		return nil, err
	}

	s.reindex(ctx, obj)
	return &obj, nil
}

// Changes are the editable fields of an object. Nil fields are unchanged.
type Changes struct {
	Title        *string
	Body         models.KnowledgeBody
	Tags         []string
	QualityScore *float64
	Embedding    []float32
}

// Update writes a new experimental version linked to id through parent_id.
// The existing row is left untouched.
func (s *Store) Update(ctx context.Context, id string, ch Changes) (*models.KnowledgeObject, error) {
	prev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	version, err := NextPatch(prev.Version)
	if err != nil {
		return nil, apperrors.NewKnowledgeValidationFailedError(err.Error())
	}

	now := s.now()
	next := *prev
	next.ID = uuid.New().String()
	next.ParentID = prev.ID
	next.Version = version
	next.Status = models.StatusExperimental
	next.CreatedAt = now
	next.UpdatedAt = &now
	if ch.Title != nil {
		next.Title = *ch.Title
	}
	if ch.Body != nil {
		next.Body = ch.Body
	}
	if ch.Tags != nil {
		next.Tags = ch.Tags
	}
	if ch.QualityScore != nil {
		next.QualityScore = *ch.QualityScore
	}
	if ch.Embedding != nil {
		next.Embedding = ch.Embedding
	}

	if err := Validate(next, s.cfg.MaxBodyTokens); err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertObject(ctx, tx, next); err != nil {
			return err
		}
		return audit(ctx, tx, next.ID, "update", map[string]interface{}{"parentId": prev.ID, "version": next.Version})
	})
	if err != nil {
		return nil, err
	}

	s.reindex(ctx, next)
	return &next, nil
}

// Promote makes an experimental object active once it passes governance and
// is relevant to a canonical prompt. An active parent version is deprecated
// in the same transaction.
func (s *Store) Promote(ctx context.Context, id string) (*models.KnowledgeObject, error) {
	obj, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj.Status != models.StatusExperimental {
		return nil, apperrors.NewKnowledgeValidationFailedError(fmt.Sprintf("cannot promote %s object", obj.Status))
	}

	var problems []string
	for _, v := range governance.CheckContent(*obj) {
		problems = append(problems, v.String())
	}
	if obj.QualityScore < s.cfg.MinQuality {
		problems = append(problems, fmt.Sprintf("quality %.2f below %.2f", obj.QualityScore, s.cfg.MinQuality))
	}
	if !MatchesCanonical(*obj, s.cfg.CanonicalPrompts) {
		problems = append(problems, "not relevant to any canonical prompt")
	}
	if len(problems) > 0 {
		return nil, apperrors.NewKnowledgeValidationFailedError(strings.Join(problems, "; "))
	}

	now := s.now()
	var superseded *models.KnowledgeObject
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := setStatus(ctx, tx, obj.ID, models.StatusActive, now); err != nil {
			return err
		}
		if err := audit(ctx, tx, obj.ID, "promote", nil); err != nil {
			return err
		}
		if obj.ParentID == "" {
			return nil
		}
		parent, err := getObject(ctx, tx, obj.ParentID)
		if apperrors.HasCode(err, apperrors.ErrCodeKnowledgeNotFound) {
			return nil
		}
		if err != nil || parent.Status != models.StatusActive {
			return err
		}
		if err := setStatus(ctx, tx, parent.ID, models.StatusDeprecated, now); err != nil {
			return err
		}
		superseded = parent
		return audit(ctx, tx, parent.ID, "deprecate", map[string]interface{}{"reason": "superseded by " + obj.ID})
	})
	if err != nil {
		return nil, err
	}

	obj.Status = models.StatusActive
	obj.UpdatedAt = &now
	s.transitioned(ctx, *obj, models.StatusExperimental, "promoted")
	if superseded != nil {
		superseded.Status = models.StatusDeprecated
		superseded.UpdatedAt = &now
		s.transitioned(ctx, *superseded, models.StatusActive, "superseded by "+obj.ID)
	}
	return obj, nil
}

// Deprecate retires an object. Deprecating a deprecated object is a no-op.
func (s *Store) Deprecate(ctx context.Context, id, reason string) (*models.KnowledgeObject, error) {
	obj, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj.Status == models.StatusDeprecated {
		return obj, nil
	}

	from := obj.Status
	now := s.now()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := setStatus(ctx, tx, obj.ID, models.StatusDeprecated, now); err != nil {
			return err
		}
		return audit(ctx, tx, obj.ID, "deprecate", map[string]interface{}{"reason": reason})
	})
	if err != nil {
		return nil, err
	}

	obj.Status = models.StatusDeprecated
	obj.UpdatedAt = &now
	s.transitioned(ctx, *obj, from, reason)
	return obj, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.KnowledgeObject, error) {
	return getObject(ctx, s.db, id)
}

// ListActive returns active objects at or above minQuality, best first. A
// limit of zero or less returns every match.
func (s *Store) ListActive(ctx context.Context, minQuality float64, limit int) ([]models.KnowledgeObject, error) {
	var bound interface{}
	if limit > 0 {
		bound = limit
	}
	return s.query(ctx, "list_active", `
		SELECT `+objectColumns+`
		FROM knowledge_objects
		WHERE status = 'active' AND quality_score >= $1
		ORDER BY quality_score DESC, id
		LIMIT $2`, minQuality, bound)
}

// ListActiveWithEmbeddings returns every active object that has an embedding.
func (s *Store) ListActiveWithEmbeddings(ctx context.Context, minQuality float64) ([]models.KnowledgeObject, error) {
	return s.query(ctx, "list_active_embedded", `
		SELECT `+objectColumns+`
		FROM knowledge_objects
		WHERE status = 'active' AND quality_score >= $1 AND embedding IS NOT NULL`, minQuality)
}

// ListStale returns active objects last touched before cutoff whose quality is
// below maxQuality.
func (s *Store) ListStale(ctx context.Context, cutoff time.Time, maxQuality float64) ([]models.KnowledgeObject, error) {
	return s.query(ctx, "list_stale", `
		SELECT `+objectColumns+`
		FROM knowledge_objects
		WHERE status = 'active' AND COALESCE(updated_at, created_at) < $1 AND quality_score < $2
		ORDER BY id`, cutoff, maxQuality)
}

// Preferences loads tag and kind weights for one user id.
func (s *Store) Preferences(ctx context.Context, userID string) (models.PreferenceWeights, error) {
	w := models.PreferenceWeights{Tags: map[string]float64{}, Kinds: map[string]float64{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT facet, value, weight
		FROM preference_weights
		WHERE user_id = $1`, userID)
	if err != nil {
		return w, apperrors.NewQueryExecutionFailedError("preferences", err)
	}
	defer rows.Close()

	for rows.Next() {
		var facet, value string
		var weight float64
		if err := rows.Scan(&facet, &value, &weight); err != nil {
			return w, apperrors.NewQueryExecutionFailedError("preferences", err)
		}
		switch facet {
		case "tag":
			w.Tags[strings.ToLower(value)] = weight
		case "kind":
			w.Kinds[value] = weight
		}
	}
	if err := rows.Err(); err != nil {
		return w, apperrors.NewQueryExecutionFailedError("preferences", err)
	}
	return w, nil
}

// SetPreference upserts one learned weight. facet is "tag" or "kind".
func (s *Store) SetPreference(ctx context.Context, userID, facet, value string, weight float64) error {
	if facet != "tag" && facet != "kind" {
		return apperrors.NewInvalidRequestError(fmt.Sprintf("unknown preference facet %q", facet))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preference_weights (user_id, facet, value, weight)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, facet, value) DO UPDATE SET weight = EXCLUDED.weight`,
		userID, facet, strings.ToLower(value), weight)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("set_preference", err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, op, q string, args ...interface{}) ([]models.KnowledgeObject, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(op, err)
	}
	defer rows.Close()

	var out []models.KnowledgeObject
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError(op, err)
		}
		out = append(out, *obj)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError(op, err)
	}
	return out, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", map[string]interface{}{"error": rbErr})
		}
		if _, ok := apperrors.AsStandardError(err); ok {
			return err
		}
		return apperrors.NewQueryExecutionFailedError("write", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewQueryExecutionFailedError("commit", err)
	}
	return nil
}

func (s *Store) reindex(ctx context.Context, obj models.KnowledgeObject) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexObject(ctx, obj); err != nil {
		s.logger.Warn("failed to index knowledge object", map[string]interface{}{"id": obj.ID, "error": err})
	}
}

func (s *Store) transitioned(ctx context.Context, obj models.KnowledgeObject, from models.KnowledgeStatus, reason string) {
	metrics.KnowledgeTransitions.WithLabelValues(string(obj.Status)).Inc()
	s.logger.Info("knowledge status changed", map[string]interface{}{
		"id":     obj.ID,
		"from":   from,
		"to":     obj.Status,
		"reason": reason,
	})
	s.reindex(ctx, obj)

	if s.events == nil {
		return
	}
	event := aws.GovernanceEvent{
		ObjectID:   obj.ID,
		Kind:       string(obj.Kind),
		FromStatus: string(from),
		ToStatus:   string(obj.Status),
		Reason:     reason,
		OccurredAt: s.now().Format(time.RFC3339),
	}
	if err := s.events.PublishGovernanceEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish governance event", map[string]interface{}{"id": obj.ID, "error": err})
	}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func getObject(ctx context.Context, q queryer, id string) (*models.KnowledgeObject, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+objectColumns+`
		FROM knowledge_objects
		WHERE id = $1`, id)
	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewKnowledgeNotFoundError(id)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get", err)
	}
	return obj, nil
}

func scanObject(sc scanner) (*models.KnowledgeObject, error) {
	var (
		obj       models.KnowledgeObject
		parentID  sql.NullString
		kind      string
		status    string
		body      []byte
		tags      []string
		embedding []byte
		updatedAt sql.NullTime
	)
	err := sc.Scan(
		&obj.ID, &parentID, &kind, &obj.Title, &body, pq.Array(&tags),
		&obj.Version, &status, &obj.QualityScore, &embedding, &obj.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	obj.ParentID = parentID.String
	obj.Kind = models.KnowledgeKind(kind)
	obj.Status = models.KnowledgeStatus(status)
	obj.Tags = tags
	if updatedAt.Valid {
		t := updatedAt.Time
		obj.UpdatedAt = &t
	}

	obj.Body, err = models.DecodeBody(obj.Kind, body)
	if err != nil {
		return nil, err
	}
	if len(embedding) > 0 {
		if err := json.Unmarshal(embedding, &obj.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
	}
	return &obj, nil
}

func insertObject(ctx context.Context, tx *sql.Tx, obj models.KnowledgeObject) error {
	body, err := json.Marshal(obj.Body)
	if err != nil {
		return err
	}
	var embedding interface{}
	if len(obj.Embedding) > 0 {
		raw, err := json.Marshal(obj.Embedding)
		if err != nil {
			return err
		}
		embedding = string(raw)
	}
	var parentID interface{}
	if obj.ParentID != "" {
		parentID = obj.ParentID
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO knowledge_objects (`+objectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		obj.ID, parentID, string(obj.Kind), obj.Title, string(body), pq.Array(obj.Tags),
		obj.Version, string(obj.Status), obj.QualityScore, embedding, obj.CreatedAt, obj.UpdatedAt,
	)
	return err
}

func setStatus(ctx context.Context, tx *sql.Tx, id string, status models.KnowledgeStatus, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE knowledge_objects
		SET status = $2, updated_at = $3
		WHERE id = $1`, id, string(status), at)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewKnowledgeNotFoundError(id)
	}
	return nil
}

func audit(ctx context.Context, tx *sql.Tx, objectID, action string, detail map[string]interface{}) error {
	var raw interface{}
	if detail != nil {
		b, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		raw = string(b)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO knowledge_audit (object_id, action, detail)
		VALUES ($1, $2, $3)`, objectID, action, raw)
	return err
}
