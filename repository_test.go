package condbuilder_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	condbuilder "github.com/nlstn/go-condbuilder"
)

type scenarioRow struct {
	ID int `gorm:"primaryKey"`
	X  int
}

func (scenarioRow) TableName() string { return "s" }

type compositeRow struct {
	ID   int `gorm:"primaryKey;autoIncrement:false"`
	Code int `gorm:"primaryKey;autoIncrement:false"`
	X    int
}

func (compositeRow) TableName() string { return "sc" }

func openRepository(t *testing.T, models ...interface{}) *condbuilder.Repository {
	t.Helper()
	db, err := condbuilder.Open(condbuilder.ConnectionConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	repo, err := condbuilder.NewRepository(db)
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	if err := repo.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("SetLogger failed: %v", err)
	}
	return repo
}

func seedScenario(t *testing.T, repo *condbuilder.Repository) []scenarioRow {
	t.Helper()
	rows := []scenarioRow{{X: 1}, {X: 2}, {X: 1}, {X: 3}}
	if err := repo.Save(context.Background(), &rows); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return rows
}

func rowIDs(rows []scenarioRow) []int {
	ids := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

func TestRepository_SingleKeyScenario(t *testing.T) {
	repo := openRepository(t, &scenarioRow{})
	saved := seedScenario(t, repo)
	if got := rowIDs(saved); !reflect.DeepEqual(got, []int{1, 2, 3, 4}) {
		t.Fatalf("Expected generated ids 1..4, got %v", got)
	}

	ids, err := condbuilder.IDsOf(saved)
	if err != nil {
		t.Fatalf("IDsOf failed: %v", err)
	}

	var found []scenarioRow
	err = repo.Query(&scenarioRow{}).
		WhereInIDs(ids...).
		AndWhere("x = 1").
		OrderBy("id", false).
		Find(context.Background(), &found)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got := rowIDs(found); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Errorf("Expected ids [1 3], got %v", got)
	}
}

func TestRepository_CompositeKeyScenario(t *testing.T) {
	repo := openRepository(t, &compositeRow{})
	rows := []compositeRow{
		{ID: 1, Code: 1, X: 1},
		{ID: 2, Code: 1, X: 2},
		{ID: 3, Code: 1, X: 1},
		{ID: 4, Code: 1, X: 3},
		{ID: 1, Code: 2, X: 1},
	}
	if err := repo.Save(context.Background(), &rows); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ids, err := condbuilder.IDsOf(rows[:4])
	if err != nil {
		t.Fatalf("IDsOf failed: %v", err)
	}
	if len(ids) != 4 {
		t.Fatalf("Expected 4 ids, got %d", len(ids))
	}

	var found []compositeRow
	err = repo.Query(&compositeRow{}).
		WhereInIDs(ids...).
		AndWhere("x = ?", 1).
		OrderBy("id", false).
		Find(context.Background(), &found)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	expected := []compositeRow{{ID: 1, Code: 1, X: 1}, {ID: 3, Code: 1, X: 1}}
	if !reflect.DeepEqual(found, expected) {
		t.Errorf("Expected %v, got %v", expected, found)
	}
}

func TestRepository_RegistrationOrderDoesNotMatter(t *testing.T) {
	repo := openRepository(t, &scenarioRow{})
	saved := seedScenario(t, repo)

	var before, after []scenarioRow
	if err := repo.Query(&scenarioRow{}).AndWhere("x = 1").AndWhereInIDs(saved).OrderBy("id", false).Find(context.Background(), &before); err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if err := repo.Query(&scenarioRow{}).AndWhereInIDs(saved).AndWhere("x = 1").OrderBy("id", false).Find(context.Background(), &after); err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !reflect.DeepEqual(rowIDs(before), rowIDs(after)) || !reflect.DeepEqual(rowIDs(after), []int{1, 3}) {
		t.Errorf("Expected [1 3] in both orders, got %v and %v", rowIDs(before), rowIDs(after))
	}
}

func TestRepository_ContainmentWithSingleIdentifier(t *testing.T) {
	repo := openRepository(t, &scenarioRow{})
	seedScenario(t, repo)

	q := repo.Query(&scenarioRow{}).WhereInIDs(2).OrWhere("x = ?", 3).AndWhere("x <> ?", 3)
	var found []scenarioRow
	if err := q.Find(context.Background(), &found); err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got := rowIDs(found); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("Expected [2], got %v", got)
	}

	sql, _, err := repo.Query(&scenarioRow{}).WhereInIDs(2).AndWhere("x = 1").ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	expected := `SELECT * FROM "s" WHERE ("id" IN (?)) AND (x = 1)`
	if sql != expected {
		t.Errorf("Expected %q, got %q", expected, sql)
	}
}

func TestRepository_WhereInIDsReplacesConditions(t *testing.T) {
	repo := openRepository(t, &scenarioRow{})
	seedScenario(t, repo)

	q := repo.Query(&scenarioRow{}).AndWhere("x = 3").WhereInIDs([]int{1, 2})
	count, err := q.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 rows, got %d", count)
	}
	if q.Tree().Len() != 1 {
		t.Errorf("Expected only the identifier filter, got %s", q.Tree())
	}
}

func TestRepository_CountAndFindMaps(t *testing.T) {
	repo := openRepository(t, &scenarioRow{})
	seedScenario(t, repo)

	q := repo.Query(&scenarioRow{}).
		WhereInIDs(1, 2, 3, 4).
		AndWhereColumn("x", condbuilder.OpEq, 1).
		OrderBy("id", true)

	count, err := q.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}

	rows, err := q.FindMaps(context.Background())
	if err != nil {
		t.Fatalf("FindMaps failed: %v", err)
	}
	if len(rows) != 2 || rows[0]["id"] != int64(3) || rows[1]["id"] != int64(1) {
		t.Errorf("Expected ids 3 and 1, got %v", rows)
	}

	var page []scenarioRow
	if err := repo.Query(&scenarioRow{}).OrderBy("id", false).Limit(2).Offset(1).Find(context.Background(), &page); err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got := rowIDs(page); !reflect.DeepEqual(got, []int{2, 3}) {
		t.Errorf("Expected page [2 3], got %v", got)
	}
}

func TestRepository_AndWhereGroup(t *testing.T) {
	repo := openRepository(t, &scenarioRow{})
	seedScenario(t, repo)

	group := condbuilder.AnyOf(condbuilder.Eq("x", 2), condbuilder.Eq("x", 3))
	var found []scenarioRow
	err := repo.Query(&scenarioRow{}).
		WhereInIDs(1, 2, 4).
		AndWhereGroup(group).
		OrderBy("id", false).
		Find(context.Background(), &found)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got := rowIDs(found); !reflect.DeepEqual(got, []int{2, 4}) {
		t.Errorf("Expected [2 4], got %v", got)
	}
}

func TestRepository_StickyErrors(t *testing.T) {
	repo := openRepository(t, &scenarioRow{})

	q := repo.Query(&scenarioRow{}).WhereInIDs().AndWhere("x = 1")
	if !errors.Is(q.Error, condbuilder.ErrMalformedIdentifier) {
		t.Fatalf("Expected ErrMalformedIdentifier, got %v", q.Error)
	}
	var found []scenarioRow
	if err := q.Find(context.Background(), &found); !errors.Is(err, condbuilder.ErrMalformedIdentifier) {
		t.Errorf("Expected Find to return the sticky error, got %v", err)
	}
	if q.Tree() != nil {
		t.Error("Expected no tree for a failed query")
	}

	q = repo.Query(&scenarioRow{}).AndWhere("x = 1; DROP TABLE s")
	var invalid *condbuilder.InvalidExpressionError
	if !errors.As(q.Error, &invalid) {
		t.Fatalf("Expected InvalidExpressionError, got %v", q.Error)
	}
	if _, err := q.Count(context.Background()); err == nil {
		t.Error("Expected Count to fail")
	}

	q = repo.Query(&scenarioRow{}).WhereInIDs(map[string]interface{}{"id": 1, "code": 2})
	if !errors.Is(q.Error, condbuilder.ErrMalformedIdentifier) {
		t.Errorf("Expected extra key column to be rejected, got %v", q.Error)
	}

	if repo.Query(42).Error == nil {
		t.Error("Expected error for a non-struct model")
	}
}

func TestRepository_TransactionRollsBack(t *testing.T) {
	repo := openRepository(t, &scenarioRow{})
	ctx := context.Background()

	errAbort := errors.New("abort")
	err := repo.Transaction(ctx, func(ctx context.Context) error {
		if _, ok := condbuilder.TransactionFromContext(ctx); !ok {
			t.Error("Expected a transaction in the context")
		}
		rows := []scenarioRow{{X: 1}, {X: 1}}
		if err := repo.Save(ctx, &rows); err != nil {
			return err
		}
		count, err := repo.Query(&scenarioRow{}).AndWhere("x = 1").Count(ctx)
		if err != nil {
			return err
		}
		if count != 2 {
			t.Errorf("Expected 2 rows inside the transaction, got %d", count)
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("Expected abort error, got %v", err)
	}

	count, err := repo.Query(&scenarioRow{}).Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected rollback to leave 0 rows, got %d", count)
	}
	if _, ok := condbuilder.TransactionFromContext(ctx); ok {
		t.Error("Expected no transaction outside Transaction")
	}
}

func TestRepository_PostgresStatement(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer func() { _ = mockDB.Close() }()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("gorm.Open failed: %v", err)
	}
	repo, err := condbuilder.NewRepositoryWithConfig(db, condbuilder.RepositoryConfig{DisableInCollapse: true})
	if err != nil {
		t.Fatalf("NewRepositoryWithConfig failed: %v", err)
	}
	if repo.Dialect() != condbuilder.Postgres {
		t.Fatalf("Expected postgres dialect, got %s", repo.Dialect())
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "s" WHERE ("id" = $1 OR "id" = $2) AND (x = $3)`)).
		WithArgs(1, 2, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "x"}).AddRow(1, 1))

	var found []scenarioRow
	if err := repo.Query(&scenarioRow{}).WhereInIDs(1, 2).AndWhere("x = ?", 1).Find(context.Background(), &found); err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !reflect.DeepEqual(found, []scenarioRow{{ID: 1, X: 1}}) {
		t.Errorf("unexpected rows %v", found)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}

	sql, args, err := repo.Query(&scenarioRow{}).WhereInIDs(1, 2).AndWhere("x = ?", 1).ToSQL()
	if err != nil {
		t.Fatalf("ToSQL failed: %v", err)
	}
	if sql != `SELECT * FROM "s" WHERE ("id" = $1 OR "id" = $2) AND (x = $3)` || len(args) != 3 {
		t.Errorf("unexpected native SQL %q %v", sql, args)
	}
}

func TestRepository_PostgresLiteralQuestionMark(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer func() { _ = mockDB.Close() }()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("gorm.Open failed: %v", err)
	}
	repo, err := condbuilder.NewRepository(db)
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}

	mock.ExpectQuery(`SELECT * FROM "s" WHERE (x <> 'a?b') AND (x = $1)`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "x"}).AddRow(3, 1))
	mock.ExpectQuery(`SELECT COUNT(*) FROM "s" WHERE (x <> 'a?b') AND (x = $1)`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT * FROM "s" WHERE (x <> 'a?b') AND (x = $1)`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "x"}).AddRow(3, 1))

	ctx := context.Background()
	newQuery := func() *condbuilder.Query {
		return repo.Query(&scenarioRow{}).AndWhere("x <> 'a?b'").AndWhere("x = ?", 1)
	}

	var found []scenarioRow
	if err := newQuery().Find(ctx, &found); err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if !reflect.DeepEqual(found, []scenarioRow{{ID: 3, X: 1}}) {
		t.Errorf("unexpected rows %v", found)
	}
	count, err := newQuery().Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1, got %d", count)
	}
	maps, err := newQuery().FindMaps(ctx)
	if err != nil {
		t.Fatalf("FindMaps failed: %v", err)
	}
	if len(maps) != 1 {
		t.Errorf("Expected 1 row, got %v", maps)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepository_LiteralQuestionMarkOnSQLite(t *testing.T) {
	repo := openRepository(t, &scenarioRow{})
	seedScenario(t, repo)
	ctx := context.Background()

	var found []scenarioRow
	err := repo.Query(&scenarioRow{}).
		WhereInIDs(1, 2, 3).
		AndWhere("'a?b' <> ?", "x").
		AndWhere("x = ?", 1).
		Find(ctx, &found)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(found) != 2 || found[0].ID != 1 || found[1].ID != 3 {
		t.Errorf("unexpected rows %v", found)
	}
}

func TestNewRepository_Errors(t *testing.T) {
	if _, err := condbuilder.NewRepository(nil); err == nil {
		t.Error("Expected error for nil db")
	}
	if _, err := condbuilder.Open(condbuilder.ConnectionConfig{Driver: "oracle"}); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestRepository_ScopesSurviveWhereInIDs(t *testing.T) {
	repo := openRepository(t, &scenarioRow{})
	seedScenario(t, repo)

	if err := repo.AddScope(&scenarioRow{}, condbuilder.QueryScope{Condition: "x < ?", Args: []interface{}{3}}); err != nil {
		t.Fatalf("AddScope failed: %v", err)
	}
	if err := repo.AddScope(&scenarioRow{}, condbuilder.QueryScope{Condition: "x <"}); err == nil {
		t.Error("Expected invalid scope to be rejected")
	}

	var found []scenarioRow
	err := repo.Query(&scenarioRow{}).
		AndWhere("x = 2").
		WhereInIDs(1, 2, 4).
		OrderBy("id", false).
		Find(context.Background(), &found)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got := rowIDs(found); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("Expected [1 2], got %v", got)
	}

	count, err := repo.Query(&scenarioRow{}).Scopes(condbuilder.QueryScope{Condition: "x = 1"}).Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 rows, got %d", count)
	}
}
