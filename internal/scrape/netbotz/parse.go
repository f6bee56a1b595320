package netbotz

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jrheling/pybotz/internal/checker"
)

// Sensor keys whose value cell carries a leading numeric reading followed
// by decoration the appliance adds for display.
var numericKeys = map[string]bool{
	"Temperature": true,
	"Humidity":    true,
	"Dew Point":   true,
	"Air Flow":    true,
	"Audio":       true,
}

var (
	encIDRe        = regexp.MustCompile(`status\.html\?encid=(.+)`)
	leadingFloatRe = regexp.MustCompile(`^\d+\.?\d*`)
)

// ParseModuleList extracts the module identifiers from the appliance's
// noscript menu page. The alerting pseudo-set is not a real module and is
// skipped.
func ParseModuleList(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse menu page: %w", err)
	}

	var modules []string
	for _, a := range findAll(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "a" && attr(n, "target") == "sensor"
	}) {
		m := encIDRe.FindStringSubmatch(attr(a, "href"))
		if m == nil {
			continue
		}
		if m[1] == "nbSensorSet_Alerting" {
			continue
		}
		modules = append(modules, m[1])
	}

	return modules, nil
}

// ParseSensorTable extracts readings from a module status page. Each row
// of the sensortable is one sensor: a name cell (with a trailing colon),
// a value cell, and a condition cell. Rows whose value cannot be reduced
// to a number (disconnected pods report "N/A") are omitted.
func ParseSensorTable(r io.Reader, ts time.Time) ([]checker.SensorReading, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse status page: %w", err)
	}

	table := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table" &&
			strings.Contains(attr(n, "class"), "sensortable")
	})
	if table == nil {
		return nil, fmt.Errorf("status page has no sensortable")
	}

	rows := findAll(table, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "tr"
	})
	if len(rows) < 2 {
		return nil, fmt.Errorf("sensortable has no sensor rows")
	}

	var readings []checker.SensorReading
	for _, row := range rows[1:] { // first row is the header
		cells := findAll(row, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == "td"
		})
		if len(cells) < 2 {
			continue
		}

		key := strings.TrimSuffix(strings.TrimSpace(text(cells[0])), ":")
		rawValue := strings.TrimSpace(text(cells[1]))

		value, ok := parseValue(key, rawValue)
		if !ok {
			continue
		}

		readings = append(readings, checker.SensorReading{
			Sensor: normalizeKey(key),
			Value:  value,
			Time:   ts,
			Units:  unitForKey(key),
		})
	}

	return readings, nil
}

// parseValue reduces a value cell to a number. Numeric sensors get their
// leading numeric extracted; obvious binary states are remapped so they
// can be graphed.
func parseValue(key, raw string) (float64, bool) {
	if numericKeys[key] {
		m := leadingFloatRe.FindString(raw)
		if m == "" {
			// "N/A" from a disconnected pod, or unexpected markup
			return 0, false
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	switch strings.ReplaceAll(raw, " ", "_") {
	case "Closed", "No_Motion":
		return 0, true
	case "Open", "Motion_Detected":
		return 1, true
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v, true
	}

	return 0, false
}

// normalizeKey converts an appliance display key to the form used in
// sensor configuration: spaces become underscores, parens are stripped.
func normalizeKey(key string) string {
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "(", "")
	key = strings.ReplaceAll(key, ")", "")
	return key
}

// unitForKey returns the implied unit label for well-known sensor keys.
func unitForKey(key string) string {
	switch key {
	case "Temperature", "Dew Point":
		return "F"
	case "Humidity":
		return "%"
	case "Air Flow":
		return "ft/min"
	default:
		return ""
	}
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// text returns the concatenated text content of a node's subtree.
func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// findAll returns all nodes in the subtree matching pred, in document order.
func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// findFirst returns the first node in the subtree matching pred.
func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	if pred(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}
