package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"hopperGateway/internal/apperrors"
)

const (
	timeLayout      = "2006-01-02 15:04:05.000Z"
	defaultTokenTTL = 14 * 24 * time.Hour
)

// fields the store manages itself; never read from a request body
var reservedFields = []string{"id", "collectionName", "created", "updated"}

// SQLite keeps every collection in the records table of internal/db as JSON
// documents. auth_users passwords are bcrypt hashes in auth_secrets and
// sessions are HS256 JWTs signed with the configured secret.
type SQLite struct {
	db       *sql.DB
	stbl     sq.StatementBuilderType
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

var _ Store = (*SQLite)(nil)

// NewSQLite returns a Store on an already migrated database.
func NewSQLite(db *sql.DB, secret string) *SQLite {
	return &SQLite{
		db:       db,
		stbl:     sq.StatementBuilder.RunWith(db),
		secret:   []byte(secret),
		tokenTTL: defaultTokenTTL,
		now:      time.Now,
	}
}

type tokenClaims struct {
	Collection string `json:"collectionName"`
	jwt.RegisteredClaims
}

func (s *SQLite) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
}

func where(collection string, filter Eq) sq.And {
	cond := sq.And{sq.Eq{"collection": collection}}
	for _, k := range filter.keys() {
		switch k {
		case "id", "created", "updated":
			cond = append(cond, sq.Eq{k: filter[k]})
		default:
			cond = append(cond, sq.Expr("json_extract(data, ?) = ?", "$."+k, filter[k]))
		}
	}
	return cond
}

func render(collection, id, data, created, updated string) (json.RawMessage, error) {
	fields := map[string]any{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return nil, apperrors.Internal("decode stored record", err)
		}
	}
	fields["id"] = id
	fields["collectionName"] = collection
	fields["created"] = created
	fields["updated"] = updated
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, apperrors.Internal("encode record", err)
	}
	return b, nil
}

func toFields(body any) (map[string]any, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Validation("record body is not valid JSON")
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperrors.Validation("record body must be a JSON object")
	}
	if fields == nil {
		fields = map[string]any{}
	}
	for _, f := range reservedFields {
		delete(fields, f)
	}
	return fields, nil
}

// takePassword removes the password fields from an auth_users body and
// returns the bcrypt hash, or nil when no password was supplied.
func takePassword(fields map[string]any) ([]byte, error) {
	pw, hasPw := fields["password"].(string)
	confirm, hasConfirm := fields["passwordConfirm"].(string)
	delete(fields, "password")
	delete(fields, "passwordConfirm")
	if !hasPw {
		return nil, nil
	}
	if pw == "" {
		return nil, apperrors.Validation("password: cannot be blank")
	}
	if hasConfirm && confirm != pw {
		return nil, apperrors.Validation("passwordConfirm: values don't match")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperrors.Internal("hash password", err)
	}
	return hash, nil
}

func handleSQLError(err error, msg string) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return apperrors.Validation(msg + ": value must be unique")
	}
	return apperrors.Internal(msg, err)
}

func (s *SQLite) List(ctx context.Context, collection string, opts ListOptions) (*ListResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts = opts.normalized()
	if err := opts.Filter.validate(); err != nil {
		return nil, err
	}
	cond := where(collection, opts.Filter)

	var total int
	if err := s.stbl.Select("COUNT(*)").From("records").Where(cond).
		QueryRowContext(ctx).Scan(&total); err != nil {
		return nil, apperrors.Internal("count "+collection, err)
	}

	rows, err := s.stbl.Select("id", "data", "created", "updated").
		From("records").
		Where(cond).
		OrderBy("created", "rowid").
		Limit(uint64(opts.PerPage)).
		Offset(uint64((opts.Page - 1) * opts.PerPage)).
		QueryContext(ctx)
	if err != nil {
		return nil, apperrors.Internal("list "+collection, err)
	}
	defer rows.Close()

	out := &ListResult{
		Page:       opts.Page,
		PerPage:    opts.PerPage,
		TotalItems: total,
		TotalPages: (total + opts.PerPage - 1) / opts.PerPage,
		Items:      []json.RawMessage{},
	}
	for rows.Next() {
		var id, data, created, updated string
		if err := rows.Scan(&id, &data, &created, &updated); err != nil {
			return nil, apperrors.Internal("scan "+collection, err)
		}
		rec, err := render(collection, id, data, created, updated)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("list "+collection, err)
	}
	return out, nil
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var data, created, updated string
	err := s.stbl.Select("data", "created", "updated").
		From("records").
		Where(sq.Eq{"collection": collection, "id": id}).
		QueryRowContext(ctx).
		Scan(&data, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("get %s/%s: not found", collection, id)
		}
		return nil, apperrors.Internal("get "+collection, err)
	}
	return render(collection, id, data, created, updated)
}

func (s *SQLite) Create(ctx context.Context, collection string, body any) (json.RawMessage, error) {
	fields, err := toFields(body)
	if err != nil {
		return nil, err
	}
	var hash []byte
	if collection == CollectionUsers {
		if hash, err = takePassword(fields); err != nil {
			return nil, err
		}
		if hash == nil {
			return nil, apperrors.Validation("password: cannot be blank")
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, apperrors.Internal("encode record", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	id, ts := newID(), s.timestamp()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Internal("begin", err)
	}
	defer func() { _ = tx.Rollback() }()
	stbl := sq.StatementBuilder.RunWith(tx)

	if _, err := stbl.Insert("records").
		Columns("id", "collection", "data", "created", "updated").
		Values(id, collection, string(data), ts, ts).
		ExecContext(ctx); err != nil {
		return nil, handleSQLError(err, "create "+collection)
	}
	if hash != nil {
		if _, err := stbl.Insert("auth_secrets").
			Columns("record_id", "password_hash").
			Values(id, string(hash)).
			ExecContext(ctx); err != nil {
			return nil, handleSQLError(err, "store password")
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("commit", err)
	}
	return render(collection, id, string(data), ts, ts)
}

func (s *SQLite) Update(ctx context.Context, collection, id string, body any) (json.RawMessage, error) {
	patch, err := toFields(body)
	if err != nil {
		return nil, err
	}
	var hash []byte
	if collection == CollectionUsers {
		if hash, err = takePassword(patch); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Internal("begin", err)
	}
	defer func() { _ = tx.Rollback() }()
	stbl := sq.StatementBuilder.RunWith(tx)

	var data, created string
	err = stbl.Select("data", "created").
		From("records").
		Where(sq.Eq{"collection": collection, "id": id}).
		QueryRowContext(ctx).
		Scan(&data, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFoundf("update %s/%s: not found", collection, id)
		}
		return nil, apperrors.Internal("update "+collection, err)
	}

	fields := map[string]any{}
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, apperrors.Internal("decode stored record", err)
	}
	for k, v := range patch {
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, apperrors.Internal("encode record", err)
	}

	ts := s.timestamp()
	if _, err := stbl.Update("records").
		Set("data", string(merged)).
		Set("updated", ts).
		Where(sq.Eq{"collection": collection, "id": id}).
		ExecContext(ctx); err != nil {
		return nil, handleSQLError(err, "update "+collection)
	}
	if hash != nil {
		if _, err := stbl.Replace("auth_secrets").
			Columns("record_id", "password_hash").
			Values(id, string(hash)).
			ExecContext(ctx); err != nil {
			return nil, apperrors.Internal("store password", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("commit", err)
	}
	return render(collection, id, string(merged), created, ts)
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Internal("begin", err)
	}
	defer func() { _ = tx.Rollback() }()
	stbl := sq.StatementBuilder.RunWith(tx)

	// foreign_keys is a per-connection pragma, so the cascade is not relied on
	if collection == CollectionUsers {
		if _, err := stbl.Delete("auth_secrets").Where(sq.Eq{"record_id": id}).ExecContext(ctx); err != nil {
			return apperrors.Internal("delete password", err)
		}
	}
	res, err := stbl.Delete("records").Where(sq.Eq{"collection": collection, "id": id}).ExecContext(ctx)
	if err != nil {
		return apperrors.Internal("delete "+collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Internal("delete "+collection, err)
	}
	if n == 0 {
		return apperrors.NotFoundf("delete %s/%s: not found", collection, id)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("commit", err)
	}
	return nil
}

// AuthWithPassword accepts either the email or the username as identity.
func (s *SQLite) AuthWithPassword(ctx context.Context, identity, password string) (*AuthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id, data, created, updated, hash string
	err := s.stbl.Select("r.id", "r.data", "r.created", "r.updated", "a.password_hash").
		From("records r").
		Join("auth_secrets a ON a.record_id = r.id").
		Where(sq.Eq{"r.collection": CollectionUsers}).
		Where(sq.Or{
			sq.Expr("json_extract(r.data, '$.email') = ?", identity),
			sq.Expr("json_extract(r.data, '$.username') = ?", identity),
		}).
		Limit(1).
		QueryRowContext(ctx).
		Scan(&id, &data, &created, &updated, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Unauthenticated("invalid credentials", nil)
		}
		return nil, apperrors.Internal("auth-with-password", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, apperrors.Unauthenticated("invalid credentials", nil)
	}
	return s.session(id, data, created, updated)
}

func (s *SQLite) AuthRefresh(ctx context.Context, token string) (*AuthResult, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, apperrors.Unauthenticated("invalid or expired token", err)
	}
	if claims.Collection != CollectionUsers || claims.Subject == "" {
		return nil, apperrors.Unauthenticated("invalid or expired token", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var data, created, updated string
	err = s.stbl.Select("data", "created", "updated").
		From("records").
		Where(sq.Eq{"collection": CollectionUsers, "id": claims.Subject}).
		QueryRowContext(ctx).
		Scan(&data, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Unauthenticated("invalid or expired token", nil)
		}
		return nil, apperrors.Internal("auth-refresh", err)
	}
	return s.session(claims.Subject, data, created, updated)
}

func (s *SQLite) session(id, data, created, updated string) (*AuthResult, error) {
	if len(s.secret) == 0 {
		return nil, apperrors.Internal("issue token", errors.New("token secret is empty"))
	}
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Collection: CollectionUsers,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return nil, apperrors.Internal("issue token", err)
	}
	rec, err := render(CollectionUsers, id, data, created, updated)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: signed, Record: rec}, nil
}
