package pattern

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"candlemind/internal/market"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorBackground  = "#060c1b"
	colorTextPrimary = "#eceff4"
	colorBull        = "#34d399"
	colorBear        = "#f87171"

	chartWidthPx  = 1280
	chartHeightPx = 560
)

// RenderKlinePNG 把 K 线渲染为 PNG 并返回 data URI，供多模态模型读图。
func RenderKlinePNG(ctx context.Context, symbol, interval string, candles []market.Candle) (string, error) {
	if len(candles) == 0 {
		return "", fmt.Errorf("no candles for %s %s", symbol, interval)
	}
	html, err := buildKlineHTML(symbol, interval, candles)
	if err != nil {
		return "", err
	}
	png, err := renderHTMLToPNG(ctx, html, chartWidthPx, chartHeightPx)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func buildKlineHTML(symbol, interval string, candles []market.Candle) ([]byte, error) {
	init := opts.Initialization{
		Theme:           types.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", chartHeightPx),
		BackgroundColor: colorBackground,
	}
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{
			Title:      fmt.Sprintf("%s %s", strings.ToUpper(symbol), interval),
			Left:       "left",
			Top:        "10",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
		}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	xAxis := make([]string, 0, len(candles))
	data := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		xAxis = append(xAxis, time.UnixMilli(c.OpenTime).UTC().Format("01-02 15:04"))
		data = append(data, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries(fmt.Sprintf("Price_%s", interval), data)

	var buf bytes.Buffer
	if err := kline.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 100),
	}
	if err := chromedp.Run(timeoutCtx, tasks); err != nil {
		return nil, err
	}
	if len(screenshot) == 0 {
		return nil, fmt.Errorf("empty screenshot")
	}
	return screenshot, nil
}
