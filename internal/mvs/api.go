package mvs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/jacklau/mvsdump/internal/catalog"
)

const (
	productsPath = "/_apis/AzureSearch/GetfilesForListOfProducts"
	searchPath   = "/_apis/AzureSearch/Search"
	linkPath     = "/_apis/Download/GetLink"

	// DefaultLinkProduct is sent with link requests when no product is
	// given (Visual Studio Community 2022). The server accepts any product
	// the subscription can see.
	DefaultLinkProduct = 8228
)

// GetProducts fetches the file listings of the given product ids. Ids the
// server does not know are absent from the result.
func (c *Client) GetProducts(ctx context.Context, ids []int64) (map[int64]catalog.RawRecord, error) {
	if err := c.ensureValid(); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int64{}
	}

	var resp struct {
		FilesForProducts json.RawMessage `json:"filesForProducts"`
	}
	query := url.Values{"upn": {""}, "mkt": {""}}
	if err := c.do(ctx, http.MethodPost, productsPath, query, ids, &resp); err != nil {
		return nil, fmt.Errorf("fetching products: %w", err)
	}

	records, err := decodeRecords(resp.FilesForProducts)
	if err != nil {
		return nil, fmt.Errorf("decoding filesForProducts: %w", err)
	}

	products := make(map[int64]catalog.RawRecord, len(records.order))
	for _, key := range records.order {
		rec := records.byKey[key]
		id, err := rec.ProductID()
		if err != nil && records.keyed {
			id, err = strconv.ParseInt(key, 10, 64)
		}
		if err != nil {
			c.logger.Warn("dropping product record without id", "key", key)
			continue
		}
		products[id] = rec
	}
	return products, nil
}

// GetSearchResults returns the full search listing grouped by product. Each
// entry carries productId and productName.
func (c *Client) GetSearchResults(ctx context.Context) ([]catalog.RawRecord, error) {
	if err := c.ensureValid(); err != nil {
		return nil, err
	}

	body := map[string]any{"getAllResults": true, "subscriptionLevel": ""}
	var resp struct {
		Results json.RawMessage `json:"searchResultsGroupByProduct"`
	}
	if err := c.do(ctx, http.MethodPost, searchPath, url.Values{"upn": {""}}, body, &resp); err != nil {
		return nil, fmt.Errorf("fetching search results: %w", err)
	}

	records, err := decodeRecords(resp.Results)
	if err != nil {
		return nil, fmt.Errorf("decoding searchResultsGroupByProduct: %w", err)
	}
	results := make([]catalog.RawRecord, 0, len(records.order))
	for _, key := range records.order {
		results = append(results, records.byKey[key])
	}
	return results, nil
}

// GetLink resolves a file name to a download URL. productID 0 uses
// DefaultLinkProduct.
func (c *Client) GetLink(ctx context.Context, fileName string, productID int64) (string, error) {
	if err := c.ensureValid(); err != nil {
		return "", err
	}
	if productID == 0 {
		productID = DefaultLinkProduct
	}

	query := url.Values{
		"friendlyFileName": {fileName},
		"upn":              {""},
		"productId":        {strconv.FormatInt(productID, 10)},
	}
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, linkPath, query, nil, &resp); err != nil {
		return "", fmt.Errorf("fetching link for %s: %w", fileName, err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("fetching link for %s: empty url in response", fileName)
	}
	return resp.URL, nil
}

// recordSet keeps decoded records in a stable order. keyed is true when the
// keys came from the response object rather than array positions.
type recordSet struct {
	order []string
	byKey map[string]catalog.RawRecord
	keyed bool
}

// decodeRecords accepts either an object of records keyed by id or an array
// of records, which is keyed by position.
func decodeRecords(data json.RawMessage) (recordSet, error) {
	set := recordSet{byKey: make(map[string]catalog.RawRecord)}
	if len(data) == 0 || string(data) == "null" {
		return set, nil
	}

	if data[0] == '[' {
		var list []catalog.RawRecord
		if err := decodeNumbers(data, &list); err != nil {
			return set, err
		}
		for i, rec := range list {
			if rec == nil {
				continue
			}
			key := strconv.Itoa(i)
			set.order = append(set.order, key)
			set.byKey[key] = rec
		}
		return set, nil
	}

	var obj map[string]catalog.RawRecord
	if err := decodeNumbers(data, &obj); err != nil {
		return set, err
	}
	set.keyed = true
	for key, rec := range obj {
		if rec == nil {
			continue
		}
		set.order = append(set.order, key)
		set.byKey[key] = rec
	}
	sort.Slice(set.order, func(i, j int) bool {
		a, errA := strconv.ParseInt(set.order[i], 10, 64)
		b, errB := strconv.ParseInt(set.order[j], 10, 64)
		if errA != nil || errB != nil {
			return set.order[i] < set.order[j]
		}
		return a < b
	})
	return set, nil
}
