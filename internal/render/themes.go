package render

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"citypaper/internal/apperrors"
	"citypaper/internal/models"
)

// ListThemes returns the sorted stems of the *.json files in dir. A missing
// directory yields no themes.
func ListThemes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeConfig, "reading themes directory", err)
	}
	var themes []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		themes = append(themes, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(themes)
	return themes, nil
}

// SelectThemes resolves the themes to render. An empty request means every
// available theme.
func SelectThemes(available []string, requested string) ([]string, error) {
	if requested == "" {
		if len(available) == 0 {
			return nil, apperrors.New(apperrors.ErrCodeNoThemes, "no themes found in themes directory")
		}
		return available, nil
	}
	for _, t := range available {
		if t == requested {
			return []string{t}, nil
		}
	}
	return nil, apperrors.Newf(apperrors.ErrCodeThemeNotFound, "theme %q not found; available themes: %s",
		requested, strings.Join(available, ", "))
}

// SelectFormats filters the format table by name, keeping table order. An
// empty request or "all" selects the whole table.
func SelectFormats(all []models.OutputFormat, requested []string) ([]models.OutputFormat, error) {
	want := map[string]bool{}
	for _, r := range requested {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if strings.EqualFold(r, "all") {
			return all, nil
		}
		want[strings.ToLower(r)] = true
	}
	if len(want) == 0 {
		return all, nil
	}

	var out []models.OutputFormat
	for _, f := range all {
		if want[strings.ToLower(f.Name)] {
			out = append(out, f)
			delete(want, strings.ToLower(f.Name))
		}
	}
	if len(want) > 0 {
		unknown := make([]string, 0, len(want))
		for k := range want {
			unknown = append(unknown, k)
		}
		sort.Strings(unknown)
		return nil, apperrors.Newf(apperrors.ErrCodeInvalidInput, "unknown formats: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// DisplayNames picks the names printed on the poster. The city comes from the
// override, then the structured city, then the first display-name token, then
// the input; the country from the override or the input.
func DisplayNames(city, country, overrideCity, overrideCountry string, admin models.AdminInfo) (displayCity, displayCountry string) {
	switch {
	case strings.TrimSpace(overrideCity) != "":
		displayCity = overrideCity
	case admin.Structured.City != "":
		displayCity = admin.Structured.City
	case len(admin.Parts) > 0 && admin.Parts[0] != "":
		displayCity = admin.Parts[0]
	default:
		displayCity = city
	}

	displayCountry = country
	if strings.TrimSpace(overrideCountry) != "" {
		displayCountry = overrideCountry
	}
	return displayCity, displayCountry
}
