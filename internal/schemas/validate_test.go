package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOfflineDatabase_Valid(t *testing.T) {
	doc := `{
		"data": [
			{
				"title": "Cowboy Bebop",
				"episodes": 26,
				"status": "FINISHED",
				"animeSeason": {"season": "SPRING", "year": 1998},
				"score": {"median": 8.7},
				"synonyms": ["Kaubôi Bibappu"],
				"tags": ["space", "bounty hunters"],
				"sources": ["https://myanimelist.net/anime/1"]
			},
			{"title": "Unknown Episodes", "episodes": null, "animeSeason": null, "score": null}
		]
	}`
	assert.NoError(t, ValidateOfflineDatabase([]byte(doc)))
}

func TestValidateOfflineDatabase_MissingData(t *testing.T) {
	err := ValidateOfflineDatabase([]byte(`{"repository": "x"}`))
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.NotEmpty(t, validationErr.Errors)
}

func TestValidateOfflineDatabase_WrongTypes(t *testing.T) {
	doc := `{"data": [{"title": "", "episodes": "twelve", "tags": "not-a-list"}]}`
	err := ValidateOfflineDatabase([]byte(doc))
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.GreaterOrEqual(t, len(validationErr.Errors), 3)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_MaxErrors(t *testing.T) {
	doc := `{"data": [{"title": 1}, {"title": 2}, {"title": 3}]}`
	err := Validate("offline_database.schema.json", []byte(doc), 2)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Len(t, validationErr.Errors, 2)
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("nope.schema.json", []byte(`{}`), 0)

	var loadErr *SchemaLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "nope.schema.json", loadErr.Name)
}

func TestValidate_MalformedDocument(t *testing.T) {
	err := ValidateOfflineDatabase([]byte(`{"data": [`))
	assert.Error(t, err)
}
