package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slideNamePattern matches slide part names inside the PPTX container.
var slideNamePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractPptx collects the text runs of every slide, slides in deck
// order, one line per paragraph.
func extractPptx(ctx context.Context, path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening pptx container: %w", err)
	}
	defer reader.Close()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range reader.File {
		m := slideNamePattern.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: num, file: file})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var lines []string
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", fmt.Errorf("opening slide %d: %w", s.num, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading slide %d: %w", s.num, err)
		}

		slideLines, err := parseSlideXML(content)
		if err != nil {
			return "", fmt.Errorf("parsing slide %d: %w", s.num, err)
		}
		lines = append(lines, slideLines...)
	}
	return strings.Join(lines, "\n"), nil
}

// parseSlideXML walks the slide XML and gathers DrawingML text runs
// (<a:t>), one output line per paragraph (<a:p>).
func parseSlideXML(content []byte) ([]string, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(content)))

	var lines []string
	var para strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if line := para.String(); strings.TrimSpace(line) != "" {
					lines = append(lines, line)
				}
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	// A trailing run outside a closed paragraph still counts.
	if line := para.String(); strings.TrimSpace(line) != "" {
		lines = append(lines, line)
	}
	return lines, nil
}
