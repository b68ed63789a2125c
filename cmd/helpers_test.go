package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jacklau/mvsdump/internal/secret"
)

const (
	productsPath = "/_apis/AzureSearch/GetfilesForListOfProducts"
	linkPath     = "/_apis/Download/GetLink"
)

// catalogServer serves product listings, rejecting requests whose session
// cookie is in the rejected set.
type catalogServer struct {
	mu       sync.Mutex
	products map[int64][]map[string]any
	rejected map[string]bool
	requests int
	srv      *httptest.Server
}

func newCatalogServer(t *testing.T) *catalogServer {
	t.Helper()
	c := &catalogServer{products: map[int64][]map[string]any{}, rejected: map[string]bool{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+productsPath, c.handleProducts)
	mux.HandleFunc("GET "+linkPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		json.NewEncoder(w).Encode(map[string]string{
			"url": "https://download.example.com/" + q.Get("friendlyFileName") + "?product=" + q.Get("productId"),
		})
	})
	c.srv = httptest.NewServer(mux)
	t.Cleanup(c.srv.Close)
	return c
}

func (c *catalogServer) addFile(product, id int64, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product] = append(c.products[product], map[string]any{
		"productId":    product,
		"productName":  name,
		"id":           id,
		"fileName":     fmt.Sprintf("file_%d.iso", id),
		"languageCode": "en",
	})
}

func (c *catalogServer) handleProducts(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests++

	cookie, err := r.Cookie("UserAuthentication")
	if err != nil || c.rejected[cookie.Value] {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var ids []int64
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := map[string]any{}
	for _, id := range ids {
		if files, ok := c.products[id]; ok {
			out[fmt.Sprint(id)] = map[string]any{"productId": id, "fileDetailModels": files}
		}
	}
	json.NewEncoder(w).Encode(map[string]any{"filesForProducts": out})
}

func signedToken(t *testing.T, sub string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

// testEnv is a config file with a secrets directory, pointing at a server.
type testEnv struct {
	cfgPath    string
	secretsDir string
	dbPath     string
	secrets    *secret.FileStore
}

func newTestEnv(t *testing.T, baseURL, extraYAML string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		cfgPath:    filepath.Join(dir, "config.yaml"),
		secretsDir: filepath.Join(dir, "secrets"),
		dbPath:     filepath.Join(dir, "catalog.db"),
	}
	env.secrets = secret.NewFileStore(env.secretsDir)

	yaml := fmt.Sprintf("mvs:\n  base_url: %s\n  request_timeout: 5s\nsecrets:\n  dir: %s\n%s", baseURL, env.secretsDir, extraYAML)
	require.NoError(t, os.WriteFile(env.cfgPath, []byte(yaml), 0o600))
	return env
}

func (e *testEnv) setSecret(t *testing.T, name, value string) {
	t.Helper()
	require.NoError(t, e.secrets.Set(context.Background(), name, value))
}

// execute runs the root command with args and returns its stdout. Package
// flag variables are reset afterwards.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(bytes.NewBufferString(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags() {
	cfgFile, verbose = "", false
	syncPublish, syncNoPublish, syncProgress = false, false, false
	syncStrategy, syncWorkers, syncBatchSize = "", 0, 0
	watchInterval, watchPublish = "", false
	searchLimit, searchHashes = 50, false
	statusTop = 10
	linkProduct = 0
}
