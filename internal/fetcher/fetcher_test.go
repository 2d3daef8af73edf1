package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListItems(t *testing.T) {
	page := `<html><body>
		<h1>Groceries</h1>
		<ul>
			<li>milk</li>
			<li>  oat
			    bread </li>
			<li><b>eggs</b> (dozen)</li>
			<li>fruit
				<ul><li>apples</li><li>pears</li></ul>
			</li>
			<li>   </li>
		</ul>
		<script>var x = "<li>not me</li>"</script>
	</body></html>`

	assert.Equal(t,
		[]string{"milk", "oat bread", "eggs (dozen)", "fruit", "apples", "pears"},
		ListItems(page))
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/list.json"))
	assert.True(t, IsURL(" http://x "))
	assert.False(t, IsURL("backup.json"))
	assert.False(t, IsURL("ftp://x"))
}

func TestFetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	p, err := New().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, p.Document)
	assert.Empty(t, p.Items)
}

func TestFetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<ol><li>one</li><li>two</li></ol>`))
	}))
	defer srv.Close()

	p, err := New().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, p.Items)
	assert.Empty(t, p.Document)
}

func TestFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/empty":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<p>no list here</p>`))
		default:
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte{0x89, 'P', 'N', 'G'})
		}
	}))
	defer srv.Close()

	c := New()
	_, err := c.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "HTTP 404")

	_, err = c.Fetch(context.Background(), srv.URL+"/empty")
	assert.ErrorContains(t, err, "no list items")

	_, err = c.Fetch(context.Background(), srv.URL+"/image")
	assert.ErrorContains(t, err, "unsupported content type")

	_, err = c.Fetch(context.Background(), "ftp://example.com/x")
	assert.ErrorContains(t, err, "unsupported scheme")
}
