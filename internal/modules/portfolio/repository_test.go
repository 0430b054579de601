package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio-labs/folio/internal/domain"
	testdb "github.com/folio-labs/folio/internal/testing"
)

func newRepo(t *testing.T) (*Repository, func()) {
	t.Helper()
	db, cleanup := testdb.NewTestDB(t, "portfolio")
	return NewRepository(db.Conn()), cleanup
}

func TestCreateAndGet(t *testing.T) {
	repo, cleanup := newRepo(t)
	defer cleanup()

	created, err := repo.Create("Long term", "pension savings", "nok")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "NOK", created.Currency)

	got, err := repo.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, "NOK", got.Currency)
}

func TestCreateRequiresNameAndCurrency(t *testing.T) {
	repo, cleanup := newRepo(t)
	defer cleanup()

	_, err := repo.Create("  ", "", "USD")
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = repo.Create("Valid", "", "")
	require.ErrorAs(t, err, &validationErr)
}

func TestListOrderedByCreation(t *testing.T) {
	repo, cleanup := newRepo(t)
	defer cleanup()

	first, err := repo.Create("First", "", "USD")
	require.NoError(t, err)
	second, err := repo.Create("Second", "", "USD")
	require.NoError(t, err)

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Less(t, list[0].Order, list[1].Order)
}

func TestUpdateKeepsCurrency(t *testing.T) {
	repo, cleanup := newRepo(t)
	defer cleanup()

	p, err := repo.Create("Old name", "", "USD")
	require.NoError(t, err)

	require.NoError(t, repo.Update(p.ID, "New name", "updated"))

	got, err := repo.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "New name", got.Name)
	assert.Equal(t, "USD", got.Currency)
}

func TestSetUsedCredit(t *testing.T) {
	repo, cleanup := newRepo(t)
	defer cleanup()

	p, err := repo.Create("Main", "", "USD")
	require.NoError(t, err)

	require.NoError(t, repo.SetUsedCredit(p.ID, 2500))

	got, err := repo.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, got.UsedCredit)

	err = repo.SetUsedCredit(p.ID, -1)
	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestDeleteUnknownPortfolio(t *testing.T) {
	repo, cleanup := newRepo(t)
	defer cleanup()

	assert.ErrorIs(t, repo.Delete("missing"), domain.ErrNotFound)
	_, err := repo.Get("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
