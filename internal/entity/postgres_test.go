package entity

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() {
		mock.ExpectClose()
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return NewPostgresRepository(db, nil), mock
}

func TestPostgresGetPerson(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM people")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(
			[]string{"name", "lat", "lng", "group_size_min", "group_size_max"}).
			AddRow("Alice", 51.0447, -114.0719, 5, 20))

	mock.ExpectQuery(regexp.QuoteMeta("FROM person_interests")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category"}).
			AddRow("hiking", "Hiking", "outdoors").
			AddRow("chess", "Chess", nil))

	mock.ExpectQuery(regexp.QuoteMeta("FROM person_traits")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"trait", "value"}).
			AddRow("openness", 7.0))

	mock.ExpectQuery(regexp.QuoteMeta("FROM person_preferred_types")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"group_type"}).
			AddRow("outdoors"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM person_blocks")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"blocked_id"}).
			AddRow("mallory"))

	p, err := repo.GetPerson(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetPerson() error = %v", err)
	}

	if p.Name != "Alice" {
		t.Errorf("name = %s, want Alice", p.Name)
	}
	if p.Location == nil || p.Location.Lat != 51.0447 {
		t.Errorf("location = %+v, want lat 51.0447", p.Location)
	}
	if p.GroupSizePref == nil || p.GroupSizePref.Min != 5 || p.GroupSizePref.Max != 20 {
		t.Errorf("size pref = %+v, want [5,20]", p.GroupSizePref)
	}
	if len(p.Interests) != 2 || p.Interests["hiking"].Category != "outdoors" {
		t.Errorf("interests = %+v", p.Interests)
	}
	if p.Traits["openness"] != 7.0 {
		t.Errorf("traits = %+v", p.Traits)
	}
	if !p.HasBlocked("mallory") {
		t.Error("block not hydrated")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresGetPersonNoLocation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM people")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows(
			[]string{"name", "lat", "lng", "group_size_min", "group_size_max"}).
			AddRow("Bob", nil, nil, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta("FROM person_interests")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM person_traits")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"trait", "value"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM person_preferred_types")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"group_type"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM person_blocks")).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"blocked_id"}))

	p, err := repo.GetPerson(context.Background(), "bob")
	if err != nil {
		t.Fatalf("GetPerson() error = %v", err)
	}
	if p.Location != nil {
		t.Errorf("location = %+v, want nil for NULL coordinates", p.Location)
	}
	if p.GroupSizePref != nil {
		t.Errorf("size pref = %+v, want nil", p.GroupSizePref)
	}
}

func TestPostgresGetPersonNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM people")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows(
			[]string{"name", "lat", "lng", "group_size_min", "group_size_max"}))

	_, err := repo.GetPerson(context.Background(), "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPerson() error = %v, want ErrNotFound", err)
	}
}

func TestPostgresGetGroup(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM groups")).
		WithArgs("hikers").
		WillReturnRows(sqlmock.NewRows(
			[]string{"name", "lat", "lng", "group_type", "member_count"}).
			AddRow("Hikers", 51.0, -114.0, "outdoors", 12))

	mock.ExpectQuery(regexp.QuoteMeta("FROM group_tags")).
		WithArgs("hikers").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category"}).
			AddRow("hiking", "Hiking", "outdoors"))

	g, err := repo.GetGroup(context.Background(), "hikers")
	if err != nil {
		t.Fatalf("GetGroup() error = %v", err)
	}
	if g.Type != "outdoors" || g.MemberCount != 12 {
		t.Errorf("group = %+v", g)
	}
	if len(g.Tags) != 1 {
		t.Errorf("tags = %+v, want 1", g.Tags)
	}
}

func TestPostgresListGroupsAttachesTags(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM groups")).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "name", "lat", "lng", "group_type", "member_count"}).
			AddRow("hikers", "Hikers", 51.0, -114.0, "outdoors", 12).
			AddRow("chess", "Chess Club", 51.1, -114.1, "games", 80))

	mock.ExpectQuery(regexp.QuoteMeta("FROM group_tags")).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "id", "name", "category"}).
			AddRow("hikers", "hiking", "Hiking", "outdoors"))

	groups, err := repo.ListGroups(context.Background())
	if err != nil {
		t.Fatalf("ListGroups() error = %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	byID := map[string]*Group{}
	for _, g := range groups {
		byID[g.ID] = g
	}
	if len(byID["hikers"].Tags) != 1 {
		t.Errorf("hikers tags = %+v, want hiking attached", byID["hikers"].Tags)
	}
	if len(byID["chess"].Tags) != 0 {
		t.Errorf("chess tags = %+v, want none", byID["chess"].Tags)
	}
}
