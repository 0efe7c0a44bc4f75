package httpx

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Limit: DefaultLimit}, Page{}.Normalize())
	assert.Equal(t, Page{Limit: MaxLimit, Offset: 0}, Page{Limit: 10000, Offset: -3}.Normalize())
	assert.Equal(t, Page{Limit: 20, Offset: 40}, Page{Limit: 20, Offset: 40}.Normalize())
}

func TestNextOffset(t *testing.T) {
	assert.Equal(t, 20, NextOffset(45, Page{Limit: 20}))
	assert.Equal(t, 40, NextOffset(45, Page{Limit: 20, Offset: 20}))
	assert.Equal(t, 0, NextOffset(45, Page{Limit: 20, Offset: 40}))
	assert.Equal(t, 0, NextOffset(20, Page{Limit: 20}))

	l := NewList[int](nil, 0, Page{Limit: 10})
	assert.NotNil(t, l.Items)
	assert.Equal(t, 0, l.NextOffset)
}

func ctxWith(rawQuery string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/x?"+rawQuery, nil)
	return c
}

func TestPageFromAndQueryID(t *testing.T) {
	c := ctxWith("limit=abc&offset=10&book_id=7&reader_id=-1")
	assert.Equal(t, Page{Limit: DefaultLimit, Offset: 10}, PageFrom(c))

	id, err := QueryID(c, "book_id")
	require.NoError(t, err)
	assert.EqualValues(t, 7, *id)

	_, err = QueryID(c, "reader_id")
	assert.Error(t, err)

	id, err = QueryID(c, "category_id")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestParamID(t *testing.T) {
	c := ctxWith("")
	c.Params = gin.Params{{Key: "id", Value: "12"}, {Key: "bad", Value: "0"}}
	id, err := ParamID(c, "id")
	require.NoError(t, err)
	assert.EqualValues(t, 12, id)
	_, err = ParamID(c, "bad")
	assert.Error(t, err)
}

func TestParseBoolish(t *testing.T) {
	for _, s := range []string{"1", "true", " YES ", "all"} {
		assert.True(t, ParseBoolish(s), s)
	}
	for _, s := range []string{"", "0", "no", "false"} {
		assert.False(t, ParseBoolish(s), s)
	}
}
