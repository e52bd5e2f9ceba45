package sources

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/5amCurfew/dvtkt/models"
	util "github.com/5amCurfew/dvtkt/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timestampCatalog(key string) *models.StreamCatalog {
	return &models.StreamCatalog{
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				key: map[string]interface{}{"type": "timestamp"},
			},
		},
	}
}

func stringCatalog(key string) *models.StreamCatalog {
	return &models.StreamCatalog{
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				key: map[string]interface{}{"type": "string"},
			},
		},
	}
}

func TestResolveStartingTimestampUsesStartDate(t *testing.T) {
	models.FULL_REFRESH = false
	stream := &models.StreamConfig{Name: "contacts", StartDate: "2024-01-01", ReplicationKey: "modifiedon"}
	state := models.NewStreamState("contacts")

	bookmark, err := resolveStartingTimestamp(stream, state, timestampCatalog("modifiedon"))
	require.NoError(t, err)
	require.NotNil(t, bookmark)
	assert.Equal(t, "2024-01-01T00:00:00.000000Z", util.FormatTimestamp(*bookmark))
}

func TestResolveStartingTimestampInvalidStartDate(t *testing.T) {
	models.FULL_REFRESH = false
	stream := &models.StreamConfig{Name: "contacts", StartDate: "not-a-date", ReplicationKey: "modifiedon"}
	state := models.NewStreamState("contacts")

	bookmark, err := resolveStartingTimestamp(stream, state, timestampCatalog("modifiedon"))
	require.NoError(t, err)
	assert.Nil(t, bookmark)
}

func TestResolveStartingTimestampNoFloorConfigured(t *testing.T) {
	models.FULL_REFRESH = false
	stream := &models.StreamConfig{Name: "contacts", ReplicationKey: "modifiedon"}
	state := models.NewStreamState("contacts")

	bookmark, err := resolveStartingTimestamp(stream, state, timestampCatalog("modifiedon"))
	require.NoError(t, err)
	assert.Nil(t, bookmark)
}

func TestResolveStartingTimestampPrefersStoredBookmark(t *testing.T) {
	models.FULL_REFRESH = false
	stream := &models.StreamConfig{Name: "contacts", StartDate: "2024-01-01", ReplicationKey: "modifiedon"}
	state := models.NewStreamState("contacts")
	state.Bookmark.ReplicationKeyValue = "2024-06-01T12:30:00Z"

	bookmark, err := resolveStartingTimestamp(stream, state, timestampCatalog("modifiedon"))
	require.NoError(t, err)
	require.NotNil(t, bookmark)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC), *bookmark)
}

func TestResolveStartingTimestampNonTimestampKey(t *testing.T) {
	models.FULL_REFRESH = false
	stream := &models.StreamConfig{Name: "contacts", ReplicationKey: "fullname"}
	state := models.NewStreamState("contacts")
	state.Bookmark.ReplicationKeyValue = "2024-06-01T12:30:00Z"

	bookmark, err := resolveStartingTimestamp(stream, state, stringCatalog("fullname"))
	assert.Nil(t, bookmark)

	var typeErr *ReplicationKeyTypeError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "fullname", typeErr.Key)
}

func TestResolveStartingTimestampMalformedBookmark(t *testing.T) {
	models.FULL_REFRESH = false
	stream := &models.StreamConfig{Name: "contacts", StartDate: "2024-01-01", ReplicationKey: "modifiedon"}
	state := models.NewStreamState("contacts")
	state.Bookmark.ReplicationKeyValue = "garbage"

	bookmark, err := resolveStartingTimestamp(stream, state, timestampCatalog("modifiedon"))
	assert.Nil(t, bookmark)

	var parseErr *BookmarkParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "garbage", parseErr.Value)
}

func TestResolveStartingTimestampFullRefreshIgnoresBookmark(t *testing.T) {
	models.FULL_REFRESH = true
	defer func() { models.FULL_REFRESH = false }()

	stream := &models.StreamConfig{Name: "contacts", StartDate: "2024-01-01", ReplicationKey: "modifiedon"}
	state := models.NewStreamState("contacts")
	state.Bookmark.ReplicationKeyValue = "2024-06-01T12:30:00Z"

	bookmark, err := resolveStartingTimestamp(stream, state, timestampCatalog("modifiedon"))
	require.NoError(t, err)
	require.NotNil(t, bookmark)
	assert.Equal(t, "2024-01-01T00:00:00.000000Z", util.FormatTimestamp(*bookmark))
}

func TestBuildParamsFirstPage(t *testing.T) {
	stream := &models.StreamConfig{Name: "contacts", ReplicationKey: "modifiedon"}
	bookmark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	params, err := buildParams(stream, &bookmark, nil)
	require.NoError(t, err)

	assert.Equal(t, url.Values{
		"$orderby": []string{"modifiedon asc"},
		"$filter":  []string{"modifiedon ge 2024-01-01T00:00:00.000000Z"},
	}, params)
}

func TestBuildParamsNoBookmark(t *testing.T) {
	stream := &models.StreamConfig{Name: "contacts", ReplicationKey: "modifiedon"}

	params, err := buildParams(stream, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, url.Values{"$orderby": []string{"modifiedon asc"}}, params)
}

func TestBuildParamsCombinesCustomFilter(t *testing.T) {
	stream := &models.StreamConfig{
		Name:           "contacts",
		ReplicationKey: "modifiedon",
		QueryParams:    "$filter=objectidtypecode eq 'contact'",
	}
	bookmark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	params, err := buildParams(stream, &bookmark, nil)
	require.NoError(t, err)

	assert.Equal(t, "(modifiedon ge 2024-01-01T00:00:00.000000Z) and (objectidtypecode eq 'contact')", params.Get("$filter"))
	assert.Equal(t, "modifiedon asc", params.Get("$orderby"))
}

func TestBuildParamsCustomKeysOverwrite(t *testing.T) {
	stream := &models.StreamConfig{
		Name:        "contacts",
		QueryParams: "$top=100&$select=fullname,modifiedon",
	}

	params, err := buildParams(stream, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, url.Values{
		"$top":    []string{"100"},
		"$select": []string{"fullname,modifiedon"},
	}, params)
}

func TestBuildParamsContinuationTokenTakesTotalPrecedence(t *testing.T) {
	stream := &models.StreamConfig{
		Name:           "contacts",
		ReplicationKey: "modifiedon",
		QueryParams:    "$top=100",
	}
	bookmark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	token, err := url.Parse("https://org.crm.dynamics.com/api/data/v9.2/contacts?%24skiptoken=%3Ccookie+pagenumber%3D%222%22%3E&%24filter=modifiedon+ge+2023-12-01T00%3A00%3A00.000000Z")
	require.NoError(t, err)

	params, err := buildParams(stream, &bookmark, token)
	require.NoError(t, err)

	assert.Equal(t, url.Values{
		"$skiptoken": []string{`<cookie pagenumber="2">`},
		"$filter":    []string{"modifiedon ge 2023-12-01T00:00:00.000000Z"},
	}, params)
	assert.Empty(t, params.Get("$orderby"))
	assert.Empty(t, params.Get("$top"))
}
