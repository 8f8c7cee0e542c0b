package naver

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// maxConstituentPages bounds pagination of the index member table
const maxConstituentPages = 40

var codeRe = regexp.MustCompile(`code=([0-9A-Z]{6})`)

// FetchIndexConstituents scrapes the member codes of a Naver index (e.g. KPI200)
// 페이지를 넘기며 새 종목이 더 나오지 않으면 종료
func (c *Client) FetchIndexConstituents(ctx context.Context, index string) ([]string, error) {
	seen := make(map[string]struct{})
	var codes []string

	for page := 1; page <= maxConstituentPages; page++ {
		if err := ctx.Err(); err != nil {
			return codes, err
		}

		params := url.Values{}
		params.Set("code", index)
		params.Set("page", strconv.Itoa(page))

		body, err := c.fetch(ctx, c.baseURL, "/sise/entryJongmok.naver", params)
		if err != nil {
			return nil, err
		}

		pageCodes, err := parseConstituents(body)
		if err != nil {
			return nil, fmt.Errorf("parse %s page %d: %w", index, page, err)
		}

		added := 0
		for _, code := range pageCodes {
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			codes = append(codes, code)
			added++
		}
		if added == 0 {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"index": index,
		"count": len(codes),
	}).Info("Fetched index constituents")

	return codes, nil
}

// parseConstituents extracts item codes from the member table (td.ctg a[href])
func parseConstituents(html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	var codes []string
	doc.Find("td.ctg a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		if m := codeRe.FindStringSubmatch(href); m != nil {
			codes = append(codes, m[1])
		}
	})

	return codes, nil
}
