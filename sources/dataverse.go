package sources

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/5amCurfew/dvtkt/models"
	util "github.com/5amCurfew/dvtkt/util"
	log "github.com/sirupsen/logrus"
)

type pageState int

const (
	firstPage pageState = iota
	nextPage
	done
)

var recordsPath = []string{"value"}
var nextLinkPath = []string{"@odata.nextLink"}

// fetchPage performs one page request and returns the parsed response body.
// Indirection so pagination tests can substitute a stub.
var fetchPage = getPage

// StreamDataverseRecords walks an entity set page by page and sends every
// raw record to out. The first page is filtered and ordered from the
// resolved bookmark; each subsequent page is requested with the previous
// response's continuation token and nothing else. A fetch failure ends the
// stream's pass at its current bookmark.
func StreamDataverseRecords(stream *models.StreamConfig, state *models.StreamState, catalog *models.StreamCatalog, out chan<- map[string]interface{}) error {
	bookmark, err := resolveStartingTimestamp(stream, state, catalog)
	if err != nil {
		return err
	}

	var token *url.URL
	for page := firstPage; page != done; {
		params, err := buildParams(stream, bookmark, token)
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{"stream": stream.Name, "params": params.Encode()}).Info("requesting page")
		responseMap, err := fetchPage(stream, params)
		if err != nil {
			return fmt.Errorf("error fetching page of %s: %w", stream.Name, err)
		}

		for _, item := range extractRecords(responseMap) {
			if recordMap, ok := item.(map[string]interface{}); ok {
				out <- recordMap
			} else {
				log.WithFields(log.Fields{"item": item}).Warn("encountered non-map element in value array")
			}
		}

		token, err = continuationToken(responseMap)
		if err != nil {
			return err
		}
		if token != nil {
			page = nextPage
		} else {
			page = done
		}
	}

	return nil
}

// extractRecords returns every element of the response's value array. A
// missing or empty array simply means no matching rows exist on this page.
func extractRecords(responseMap map[string]interface{}) []interface{} {
	records, ok := util.GetValueAtPath(recordsPath, responseMap).([]interface{})
	if !ok {
		return nil
	}
	return records
}

// continuationToken parses the response's @odata.nextLink, nil when the
// final page has been reached
func continuationToken(responseMap map[string]interface{}) (*url.URL, error) {
	next := util.GetValueAtPath(nextLinkPath, responseMap)
	if next == nil {
		return nil, nil
	}

	nextLink, ok := next.(string)
	if !ok || nextLink == "" {
		return nil, nil
	}

	token, err := url.Parse(nextLink)
	if err != nil {
		return nil, fmt.Errorf("error parsing @odata.nextLink %q: %w", nextLink, err)
	}

	return token, nil
}

// getPage performs a GET request for one page of the entity set
func getPage(stream *models.StreamConfig, params url.Values) (map[string]interface{}, error) {
	client := http.DefaultClient

	req, err := http.NewRequest("GET", stream.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating get request: %w", err)
	}
	req.URL.RawQuery = params.Encode()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	if models.Config.Annotations {
		req.Header.Set("Prefer", `odata.include-annotations="*"`)
	}

	if err := setAuthHeader(req, client); err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		statusMsg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("error response: %d %s", resp.StatusCode, string(statusMsg))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var responseMap map[string]interface{}
	if err := json.Unmarshal(body, &responseMap); err != nil {
		return nil, fmt.Errorf("error json.Unmarshal into responseMap: %w", err)
	}

	return responseMap, nil
}
