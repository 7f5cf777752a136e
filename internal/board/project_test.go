package board

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/board/internal/models"
)

func strp(s string) *string { return &s }

func TestGetProject_DefaultBeforeSave(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.svc.GetProject(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultProject().Name, p.Name)
	assert.Equal(t, models.ProjectCategorySoftware, p.Category)
}

func TestUpdateProject_SavesAndReloads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cat := models.ProjectCategoryMarketing
	_, err := env.svc.UpdateProject(ctx, ProjectPatch{
		Name:     strp("  singularity 1.0  "),
		URL:      strp("https://www.atlassian.com"),
		Category: &cat,
	})
	require.NoError(t, err)

	got, err := env.reload(t).GetProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, "singularity 1.0", got.Name)
	assert.Equal(t, "https://www.atlassian.com", got.URL)
	assert.Equal(t, models.ProjectCategoryMarketing, got.Category)
}

func TestUpdateProject_ReportsEveryField(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bad := models.ProjectCategory("retail")
	_, err := env.svc.UpdateProject(ctx, ProjectPatch{
		Name:        strp(strings.Repeat("n", 150)),
		URL:         strp("not a url"),
		Description: strp(strings.Repeat("d", 2000)),
		Category:    &bad,
	})
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.NotEmpty(t, verrs.Field("name"))
	assert.NotEmpty(t, verrs.Field("url"))
	assert.NotEmpty(t, verrs.Field("description"))
	assert.NotEmpty(t, verrs.Field("category"))

	p, err := env.svc.GetProject(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultProject().Name, p.Name, "nothing saved")
}

func TestValidateProject_URL(t *testing.T) {
	base := func(u string) *models.Project {
		return &models.Project{Name: "p", URL: u, Category: models.ProjectCategorySoftware}
	}
	for _, ok := range []string{"", "http://example.com", "https://example.com/path?q=1"} {
		assert.NoError(t, ValidateProject(base(ok)), ok)
	}
	for _, bad := range []string{"example.com", "ftp://example.com", "https://", "http://exa mple.com", "/relative"} {
		assert.Error(t, ValidateProject(base(bad)), bad)
	}
}

func TestValidateProject_NameRequired(t *testing.T) {
	err := ValidateProject(&models.Project{Name: "", Category: models.ProjectCategoryBusiness})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)
}
