package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hyperjump/lmsearch/internal/geo"
	"github.com/paulmach/orb/geojson"
)

// Placeholders substituted into detail URL templates.
const (
	PlaceholderObjectID = "{objectId}"
	PlaceholderEasting  = "{easting}"
	PlaceholderNorthing = "{northing}"
)

// ErrNoFeatures is returned when a lookup response carries no features member.
var ErrNoFeatures = errors.New("there is no data available for this object")

// DetailClient fetches feature collections for one object id or one map coordinate.
type DetailClient struct {
	client        *Client
	objectURL     string
	coordinateURL string
}

// NewDetailClient creates a detail client. objectURL must contain {objectId};
// coordinateURL must contain {easting} and {northing}. Either may be empty when unused.
func NewDetailClient(client *Client, objectURL, coordinateURL string) *DetailClient {
	return &DetailClient{client: client, objectURL: objectURL, coordinateURL: coordinateURL}
}

// FetchByObjectID returns the features describing the object with the given id.
func (d *DetailClient) FetchByObjectID(ctx context.Context, objectID string) (*geojson.FeatureCollection, error) {
	if d.objectURL == "" {
		return nil, errors.New("object detail url is not configured")
	}
	u := strings.ReplaceAll(d.objectURL, PlaceholderObjectID, url.PathEscape(objectID))
	return d.fetch(ctx, u)
}

// FetchByCoordinate returns the features found at the given map coordinate.
func (d *DetailClient) FetchByCoordinate(ctx context.Context, easting, northing float64) (*geojson.FeatureCollection, error) {
	if d.coordinateURL == "" {
		return nil, errors.New("coordinate detail url is not configured")
	}
	u := strings.NewReplacer(
		PlaceholderEasting, strconv.FormatFloat(easting, 'f', -1, 64),
		PlaceholderNorthing, strconv.FormatFloat(northing, 'f', -1, 64),
	).Replace(d.coordinateURL)
	return d.fetch(ctx, u)
}

func (d *DetailClient) fetch(ctx context.Context, rawURL string) (*geojson.FeatureCollection, error) {
	body, err := d.client.GetBytes(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Features json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Features) == 0 || bytes.Equal(envelope.Features, []byte("null")) {
		return nil, ErrNoFeatures
	}
	fc, err := geo.ReadFeatureCollection(body)
	if err != nil {
		return nil, err
	}
	return fc, nil
}
