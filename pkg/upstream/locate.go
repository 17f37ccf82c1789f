package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"pfw-hq/relay/pkg/docstore"
)

type documentsResponse struct {
	DocumentBag []struct {
		DocumentIdentifier string `json:"documentIdentifier"`
		DocumentCode       string `json:"documentCode"`
		DownloadOptionBag  []struct {
			MimeTypeIdentifier string `json:"mimeTypeIdentifier"`
			DownloadURL        string `json:"downloadUrl"`
			PageTotalQuantity  int    `json:"pageTotalQuantity"`
		} `json:"downloadOptionBag"`
	} `json:"documentBag"`
}

// Locate finds the download URL for a document by listing the
// application's documents. It returns ErrNotFound when the document or the
// requested format is absent.
func (c *Client) Locate(ctx context.Context, req docstore.LocateRequest) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("%w: no base url configured for lookups", docstore.ErrInvalidReference)
	}
	mime := req.MimeType
	if mime == "" {
		mime = "PDF"
	}

	endpoint := fmt.Sprintf("%s/api/v1/patent/applications/%s/documents",
		c.baseURL, url.PathEscape(req.ApplicationNumber))

	resp, err := c.do(ctx, endpoint, "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body documentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: malformed document list: %v", ErrUnavailable, err)
	}

	for _, doc := range body.DocumentBag {
		if doc.DocumentIdentifier != req.DocumentID {
			continue
		}
		for _, opt := range doc.DownloadOptionBag {
			if strings.EqualFold(opt.MimeTypeIdentifier, mime) && opt.DownloadURL != "" {
				if _, err := c.hosts.Check(opt.DownloadURL); err != nil {
					return "", err
				}
				return opt.DownloadURL, nil
			}
		}
		return "", fmt.Errorf("%w: no %s option for document", ErrNotFound, mime)
	}
	return "", fmt.Errorf("%w: document not in application", ErrNotFound)
}
