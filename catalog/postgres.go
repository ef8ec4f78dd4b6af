package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"eve.evalgo.org/muninn/geometry"
	"eve.evalgo.org/muninn/lang"
	"eve.evalgo.org/muninn/muninnerr"
	"eve.evalgo.org/muninn/schema"
	"eve.evalgo.org/muninn/sqlbuild"
)

// postgresUniqueViolation is the PostgreSQL SQLSTATE code for a unique
// constraint violation, used to swallow the harmless race spec.md §9
// describes for concurrent tag/link inserts.
const postgresUniqueViolation = "23505"

// Postgres is the PostgreSQL-backed Catalogue, grounded on the original
// implementation's PostgresqlBackend and on the teacher's gorm.io/gorm
// connection-management conventions (db/postgres.go).
type Postgres struct {
	db       *gorm.DB
	registry *NamespaceRegistry
	builder  *sqlbuild.Builder

	mu    sync.Mutex
	depth int
}

// Open connects to PostgreSQL via dsn and configures the connection
// pool the way the teacher's PGInfo does: bounded idle/open connections
// and a finite connection lifetime.
func Open(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("catalog: connecting to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("catalog: obtaining underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return New(db), nil
}

// New wraps an already-configured *gorm.DB.
func New(db *gorm.DB) *Postgres {
	reg := NewNamespaceRegistry()
	return &Postgres{db: db, registry: reg, builder: sqlbuild.NewBuilder(reg)}
}

func (p *Postgres) RegisterNamespace(name string, fields schema.Fields) {
	p.registry.Register(name, fields)
}

func (p *Postgres) Namespaces() *NamespaceRegistry { return p.registry }

type txDBKey struct{}

// dbFor returns the *gorm.DB to issue queries against: the transaction
// handle stashed in ctx by WithTransaction, if present, else a plain
// context-bound session.
func (p *Postgres) dbFor(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txDBKey{}).(*gorm.DB); ok {
		return tx
	}
	return p.db.WithContext(ctx)
}

// WithTransaction implements Catalogue.WithTransaction. The depth guard
// mirrors the original implementation's PostgresqlConnection, which
// defers reconnection and refuses nested transactions outright rather
// than silently flattening them.
func (p *Postgres) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	p.mu.Lock()
	if p.depth > 0 {
		p.mu.Unlock()
		return muninnerr.NewInternalError("nested transactions are not supported")
	}
	p.depth++
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.depth--
		p.mu.Unlock()
	}()

	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txDBKey{}, tx))
	})
}

// inTransaction runs fn inside a transaction unless ctx is already
// inside one (i.e. this call is nested under an explicit
// WithTransaction from the coordinator), in which case it runs fn
// directly against the existing transaction handle. This is what lets
// every public mutator honor "always transactional" without rejecting
// itself as a nested transaction when the coordinator batches several
// mutations together.
func (p *Postgres) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txDBKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return p.WithTransaction(ctx, fn)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == postgresUniqueViolation
}

func quoteIdent(name string) string { return `"` + name + `"` }

// bindValue renders the placeholder expression and bound argument for a
// namespace field value, applying the same geometry/json encodings the
// expression visitor uses so a product round-trips identically whether
// it arrives via a filter expression or via direct insert/update.
func bindValue(kind schema.Kind, value any) (string, any, error) {
	switch kind {
	case schema.KindGeometry:
		g, ok := value.(geometry.Geometry)
		if !ok {
			return "", nil, muninnerr.NewUserError("expected a geometry value, got %T", value)
		}
		ewkb, err := geometry.EncodeEWKB(g)
		if err != nil {
			return "", nil, fmt.Errorf("catalog: encoding geometry: %w", err)
		}
		return "ST_GeomFromEWKB(?)", ewkb, nil
	case schema.KindUUID:
		switch v := value.(type) {
		case uuid.UUID:
			return "?", v.String(), nil
		case string:
			return "?", v, nil
		}
		return "", nil, muninnerr.NewUserError("expected a uuid value, got %T", value)
	case schema.KindJSON, schema.KindSequence, schema.KindMapping:
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", nil, fmt.Errorf("catalog: encoding json value: %w", err)
		}
		return "?", string(encoded), nil
	default:
		return "?", value, nil
	}
}

func (p *Postgres) insertNamespace(db *gorm.DB, name string, s schema.Struct, id uuid.UUID) error {
	nsSchema, ok := p.registry.Namespace(name)
	if !ok {
		return muninnerr.NewUserError("undefined namespace: %q", name)
	}

	cols := []string{"uuid"}
	placeholders := []string{"?"}
	args := []any{id.String()}
	for _, fieldName := range nsSchema.Fields.Names() {
		if fieldName == "uuid" {
			continue
		}
		value, present := s[fieldName]
		if !present {
			continue
		}
		field, _ := nsSchema.Fields.Get(fieldName)
		ph, arg, err := bindValue(field.Kind, value)
		if err != nil {
			return err
		}
		cols = append(cols, fieldName)
		placeholders = append(placeholders, ph)
		args = append(args, arg)
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, quoteIdent(name), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	return db.Exec(query, args...).Error
}

func (p *Postgres) updateNamespace(db *gorm.DB, name string, s schema.Struct, id uuid.UUID) error {
	nsSchema, ok := p.registry.Namespace(name)
	if !ok {
		return muninnerr.NewUserError("undefined namespace: %q", name)
	}

	var sets []string
	var args []any
	for _, fieldName := range nsSchema.Fields.Names() {
		if fieldName == "uuid" {
			continue
		}
		value, present := s[fieldName]
		if !present {
			continue
		}
		field, _ := nsSchema.Fields.Get(fieldName)
		ph, arg, err := bindValue(field.Kind, value)
		if err != nil {
			return err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", quoteIdent(fieldName), ph))
		args = append(args, arg)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id.String())

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE uuid = ?`, quoteIdent(name), strings.Join(sets, ", "))
	result := db.Exec(query, args...)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 1 {
		return muninnerr.NewIntegrityError("could not update properties for namespace %q of product %s", name, id)
	}
	return nil
}

func (p *Postgres) InsertProductProperties(ctx context.Context, product *schema.Product) error {
	return p.inTransaction(ctx, func(ctx context.Context) error {
		db := p.dbFor(ctx)
		id, err := coreUUID(product.Core)
		if err != nil {
			return err
		}
		if err := p.insertNamespace(db, "core", product.Core, id); err != nil {
			return err
		}
		for _, name := range product.NamespaceNames() {
			ns, _ := product.Namespace(name)
			if err := p.insertNamespace(db, name, ns, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) UpdateProductProperties(ctx context.Context, id uuid.UUID, product *schema.Product, newNamespaces []string) error {
	isNew := make(map[string]bool, len(newNamespaces))
	for _, n := range newNamespaces {
		isNew[n] = true
	}
	return p.inTransaction(ctx, func(ctx context.Context) error {
		db := p.dbFor(ctx)
		if err := p.updateNamespace(db, "core", product.Core, id); err != nil {
			return err
		}
		for _, name := range product.NamespaceNames() {
			ns, _ := product.Namespace(name)
			if isNew[name] {
				if err := p.insertNamespace(db, name, ns, id); err != nil {
					return err
				}
			} else if err := p.updateNamespace(db, name, ns, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) DeleteProductProperties(ctx context.Context, id uuid.UUID) error {
	return p.inTransaction(ctx, func(ctx context.Context) error {
		db := p.dbFor(ctx)
		if err := db.Exec(`DELETE FROM "link" WHERE source_uuid = ?`, id.String()).Error; err != nil {
			return err
		}
		result := db.Exec(`DELETE FROM "core" WHERE uuid = ?`, id.String())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return muninnerr.NewNotFoundError("no such product: %s", id)
		}
		return nil
	})
}

func (p *Postgres) Tag(ctx context.Context, id uuid.UUID, tags []string) error {
	return p.inTransaction(ctx, func(ctx context.Context) error {
		db := p.dbFor(ctx)
		query := `INSERT INTO "tag" (uuid, tag) SELECT ?, ? WHERE NOT EXISTS (SELECT 1 FROM "tag" WHERE uuid = ? AND tag = ?)`
		for _, tag := range tags {
			err := db.Exec(query, id.String(), tag, id.String(), tag).Error
			if err != nil && !isUniqueViolation(err) {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) Untag(ctx context.Context, id uuid.UUID, tags []string) error {
	return p.inTransaction(ctx, func(ctx context.Context) error {
		db := p.dbFor(ctx)
		if len(tags) == 0 {
			return db.Exec(`DELETE FROM "tag" WHERE uuid = ?`, id.String()).Error
		}
		return db.Exec(`DELETE FROM "tag" WHERE uuid = ? AND tag IN ?`, id.String(), tags).Error
	})
}

func (p *Postgres) Tags(ctx context.Context, id uuid.UUID) ([]string, error) {
	var tags []string
	err := p.dbFor(ctx).Raw(`SELECT tag FROM "tag" WHERE uuid = ? ORDER BY tag`, id.String()).Scan(&tags).Error
	return tags, err
}

func (p *Postgres) Link(ctx context.Context, id uuid.UUID, sourceIDs []uuid.UUID) error {
	return p.inTransaction(ctx, func(ctx context.Context) error {
		db := p.dbFor(ctx)
		query := `INSERT INTO "link" (uuid, source_uuid) SELECT ?, ? WHERE NOT EXISTS (SELECT 1 FROM "link" WHERE uuid = ? AND source_uuid = ?)`
		for _, src := range sourceIDs {
			err := db.Exec(query, id.String(), src.String(), id.String(), src.String()).Error
			if err != nil && !isUniqueViolation(err) {
				return err
			}
		}
		return nil
	})
}

func (p *Postgres) Unlink(ctx context.Context, id uuid.UUID, sourceIDs []uuid.UUID) error {
	return p.inTransaction(ctx, func(ctx context.Context) error {
		db := p.dbFor(ctx)
		if len(sourceIDs) == 0 {
			return db.Exec(`DELETE FROM "link" WHERE uuid = ?`, id.String()).Error
		}
		ids := make([]string, len(sourceIDs))
		for i, s := range sourceIDs {
			ids[i] = s.String()
		}
		return db.Exec(`DELETE FROM "link" WHERE uuid = ? AND source_uuid IN ?`, id.String(), ids).Error
	})
}

func (p *Postgres) SourceProducts(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return p.queryUUIDs(ctx, `SELECT source_uuid FROM "link" WHERE uuid = ?`, id.String())
}

func (p *Postgres) DerivedProducts(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	return p.queryUUIDs(ctx, `SELECT uuid FROM "link" WHERE source_uuid = ?`, id.String())
}

func (p *Postgres) queryUUIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	var raw []string
	if err := p.dbFor(ctx).Raw(query, args...).Scan(&raw).Error; err != nil {
		return nil, err
	}
	out := make([]uuid.UUID, len(raw))
	for i, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("catalog: parsing uuid from database: %w", err)
		}
		out[i] = id
	}
	return out, nil
}

func (p *Postgres) ServerTimeUTC(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := p.dbFor(ctx).Raw(`SELECT timezone('UTC', now())`).Scan(&t).Error
	return t, err
}

func (p *Postgres) Count(ctx context.Context, where lang.Node, parameters map[string]any) (int64, error) {
	q, err := p.builder.BuildCountQuery(where, parameters)
	if err != nil {
		return 0, err
	}
	var count int64
	err = p.dbFor(ctx).Raw(q.SQL, q.Args...).Scan(&count).Error
	return count, err
}

func (p *Postgres) Search(ctx context.Context, sq SearchQuery) ([]*schema.Product, error) {
	q, err := p.builder.BuildSearchQuery(sq.Where, sq.Parameters, sq.Namespaces, sq.OrderBy, sq.Limit, sq.Offset)
	if err != nil {
		return nil, err
	}

	rows, err := p.dbFor(ctx).Raw(q.SQL, q.Args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (p *Postgres) Summary(ctx context.Context, sq SummaryQuery) ([]map[string]any, error) {
	q, err := p.builder.BuildSummaryQuery(sq.Where, sq.Parameters, sq.GroupBy, sq.Aggregates)
	if err != nil {
		return nil, err
	}

	rows, err := p.dbFor(ctx).Raw(q.SQL, q.Args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		pointers := make([]any, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (p *Postgres) FindProductsWithoutSource(ctx context.Context, productType string, gracePeriod time.Duration, archivedOnly bool) ([]*schema.Product, error) {
	core, _ := p.registry.Namespace("core")
	cols := core.Fields.Names()
	selectList := make([]string, len(cols))
	for i, c := range cols {
		selectList[i] = fmt.Sprintf(`"core".%s`, quoteIdent(c))
	}

	query := fmt.Sprintf(`SELECT %s FROM "core" WHERE "core"."active" AND now() AT TIME ZONE 'UTC' - "core"."archive_date" > ? AND NOT EXISTS (SELECT 1 FROM "link" WHERE "link"."uuid" = "core"."uuid")`,
		strings.Join(selectList, ", "))
	args := []any{gracePeriod}
	if productType != "" {
		query += ` AND "core"."product_type" = ?`
		args = append(args, productType)
	}
	if archivedOnly {
		query += ` AND "core"."archive_path" IS NOT NULL`
	}

	rows, err := p.dbFor(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (p *Postgres) FindProductsWithoutAvailableSource(ctx context.Context, productType string, gracePeriod time.Duration) ([]*schema.Product, error) {
	core, _ := p.registry.Namespace("core")
	cols := core.Fields.Names()
	selectList := make([]string, len(cols))
	for i, c := range cols {
		selectList[i] = fmt.Sprintf(`"core".%s`, quoteIdent(c))
	}

	query := fmt.Sprintf(`SELECT %s FROM "core" WHERE "core"."active" AND now() AT TIME ZONE 'UTC' - "core"."archive_date" > ? AND "core"."uuid" IN (
		SELECT uuid FROM "link"
		EXCEPT
		SELECT DISTINCT "link"."uuid" FROM "link" LEFT JOIN "core" AS source ON ("link"."source_uuid" = source."uuid")
		WHERE source."uuid" IS NULL OR source."archive_path" IS NOT NULL
	)`, strings.Join(selectList, ", "))
	args := []any{gracePeriod}
	if productType != "" {
		query += ` AND "core"."product_type" = ?`
		args = append(args, productType)
	}

	rows, err := p.dbFor(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (p *Postgres) Prepare(ctx context.Context) error {
	stmts := p.builder.BuildCreateTableQuery(sqlbuild.NamespaceSchema{Name: "core", Fields: schema.CoreNamespace})
	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS "link" (id SERIAL PRIMARY KEY, uuid UUID NOT NULL REFERENCES "core"("uuid") ON DELETE CASCADE, source_uuid UUID NOT NULL, UNIQUE (uuid, source_uuid))`,
		`CREATE INDEX IF NOT EXISTS idx_link_uuid ON "link" (uuid)`,
		`CREATE INDEX IF NOT EXISTS idx_link_source_uuid ON "link" (source_uuid)`,
		`CREATE TABLE IF NOT EXISTS "tag" (id SERIAL PRIMARY KEY, uuid UUID NOT NULL REFERENCES "core"("uuid") ON DELETE CASCADE, tag TEXT NOT NULL, UNIQUE (uuid, tag))`,
		`CREATE INDEX IF NOT EXISTS idx_tag_uuid ON "tag" (uuid)`,
		`CREATE INDEX IF NOT EXISTS idx_tag_tag ON "tag" (tag)`,
	)
	for _, name := range p.registry.ExtensionNames() {
		ns, _ := p.registry.Namespace(name)
		stmts = append(stmts, p.builder.BuildCreateTableQuery(ns)...)
	}

	return p.inTransaction(ctx, func(ctx context.Context) error {
		db := p.dbFor(ctx)
		for _, stmt := range stmts {
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("catalog: preparing schema: %w", err)
			}
		}
		return nil
	})
}

func (p *Postgres) Destroy(ctx context.Context) error {
	return p.inTransaction(ctx, func(ctx context.Context) error {
		db := p.dbFor(ctx)
		if err := db.Exec(`DROP TABLE IF EXISTS "tag" CASCADE`).Error; err != nil {
			return err
		}
		if err := db.Exec(`DROP TABLE IF EXISTS "link" CASCADE`).Error; err != nil {
			return err
		}
		for _, name := range p.registry.ExtensionNames() {
			if err := db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, quoteIdent(name))).Error; err != nil {
				return err
			}
		}
		return db.Exec(`DROP TABLE IF EXISTS "core" CASCADE`).Error
	})
}

func (p *Postgres) Exists(ctx context.Context) (bool, error) {
	var names []string
	err := p.dbFor(ctx).Raw(`SELECT relname FROM pg_class WHERE relname = ?`, "core").Scan(&names).Error
	return len(names) != 0, err
}

func coreUUID(core schema.Struct) (uuid.UUID, error) {
	value, ok := core["uuid"]
	if !ok {
		return uuid.UUID{}, muninnerr.NewUserError("product core properties are missing a uuid")
	}
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.UUID{}, muninnerr.NewUserError("invalid uuid %q", v)
		}
		return id, nil
	default:
		return uuid.UUID{}, muninnerr.NewUserError("core.uuid has unexpected type %T", value)
	}
}
