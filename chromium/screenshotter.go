/*
 *
 * pagebatch - batch browser automation
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package chromium

import (
	"context"
	"math"

	cdppage "github.com/chromedp/cdproto/page"
	"github.com/mailru/easyjson"
	"github.com/pkg/errors"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/chromium/js"
)

type screenshotter struct {
	page *Page
}

func newScreenshotter(p *Page) *screenshotter {
	return &screenshotter{page: p}
}

// fullPageSize returns the document size, falling back to the viewport
// when the document has no body yet.
func (s *screenshotter) fullPageSize(ctx context.Context) (*rect, error) {
	raw, err := s.page.client.Runtime.Evaluate(ctx, js.Call(js.PageSizeScript))
	if err != nil {
		return nil, errors.Wrap(err, "evaluating page size")
	}
	var size rect
	if err := easyjson.Unmarshal(raw, &size); err != nil {
		return nil, errors.Wrap(err, "decoding page size")
	}
	if size.null || size.Width <= 0 || size.Height <= 0 {
		vp := s.page.viewport
		return &rect{Width: float64(vp.Width), Height: float64(vp.Height)}, nil
	}
	size.Width, size.Height = math.Ceil(size.Width), math.Ceil(size.Height)

	return &size, nil
}

// screenshot captures a PNG. ctx must carry the page session.
func (s *screenshotter) screenshot(ctx context.Context, opts *api.ScreenshotOptions) ([]byte, error) {
	var clip *cdppage.Viewport
	if opts.FullPage {
		size, err := s.fullPageSize(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "taking full page screenshot")
		}
		clip = &cdppage.Viewport{
			X:      0,
			Y:      0,
			Width:  size.Width,
			Height: size.Height,
			Scale:  1,
		}
	}

	buf, err := s.page.client.Page.CaptureScreenshot(ctx, clip)
	if err != nil {
		return nil, errors.Wrap(err, "taking screenshot")
	}
	if len(buf) == 0 {
		return nil, errors.New("taking screenshot: empty capture")
	}

	return buf, nil
}
