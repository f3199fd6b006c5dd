package groups

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/parleyhq/parley/internal/common"
	"github.com/parleyhq/parley/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now())
	mock.ExpectQuery(`INSERT\s+INTO\s+groups`).
		WithArgs("g-1", "team", "alice@example.com", []byte(`["alice@example.com","bob@example.com"]`)).
		WillReturnRows(rows)

	g := &models.Group{
		ID:        "g-1",
		Name:      "team",
		CreatorID: "alice@example.com",
		Members:   []string{"alice@example.com", "bob@example.com"},
	}
	got, err := repo.Create(context.Background(), g)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("created_at not populated: %+v", got)
	}
}

func TestGetByID_DecodesMembers(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "creator_id", "members", "created_at"}).
		AddRow("g-1", "team", "alice@example.com", []byte(`["alice@example.com","bob@example.com"]`), time.Now())
	mock.ExpectQuery(`SELECT\s+id,\s*name,\s*creator_id,\s*members`).
		WithArgs("g-1").
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "g-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if len(got.Members) != 2 || !got.HasMember("bob@example.com") {
		t.Fatalf("unexpected members: %+v", got.Members)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+id,\s*name,\s*creator_id`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestList_WithMemberFilter(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "creator_id", "members", "created_at"}).
		AddRow("g-1", "team", "alice@example.com", []byte(`["alice@example.com"]`), time.Now())
	mock.ExpectQuery(`FROM\s+groups\s+WHERE\s+members\s+\?\s+\$1`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "g-1" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestAddMember_GroupMissing(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+groups\s+SET\s+members\s*=\s*CASE`).
		WithArgs("ghost", "bob@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AddMember(context.Background(), "ghost", "bob@example.com")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want common.ErrNotFound, got %v", err)
	}
}

func TestAddMember_IdempotentTouchesRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// Adding an existing member still matches the row: one affected row, no error.
	mock.ExpectExec(`UPDATE\s+groups\s+SET\s+members\s*=\s*CASE`).
		WithArgs("g-1", "bob@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AddMember(context.Background(), "g-1", "bob@example.com"); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
}

func TestRemoveMember_Idempotent(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+groups\s+SET\s+members\s*=\s*members\s*-\s*\$2`).
		WithArgs("g-1", "stranger@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RemoveMember(context.Background(), "g-1", "stranger@example.com"); err != nil {
		t.Fatalf("RemoveMember error: %v", err)
	}
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+groups\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("g-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "g-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
}

func TestDelete_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+groups`).
		WithArgs("g-1").
		WillReturnError(errors.New("db down"))

	err := repo.Delete(context.Background(), "g-1")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
