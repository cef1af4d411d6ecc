// Package components renders the HTML fragments swapped in by the browser.
package components

import (
	"strconv"

	"moodmap/internal/viewmodel"
)

// editorStyle anchors the label editor at the pending click, in percent of
// the board so it follows the scaled SVG.
func editorStyle(data viewmodel.MapFragment) string {
	return "left:" + pct(data.Editor.X, data.Frame.Width) + ";top:" + pct(data.Editor.Y, data.Frame.Height)
}

func barStyle(row viewmodel.PopularRow) string {
	return "width:" + strconv.Itoa(row.Percent) + "%;background:" + row.Bar
}

func pct(v, side float64) string {
	if side <= 0 {
		return "0%"
	}
	return strconv.FormatFloat(v/side*100, 'f', 2, 64) + "%"
}
