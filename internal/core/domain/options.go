package domain

// CleaningOptions configures one clean call. Options are request inputs only
// and are not kept beyond the result they produced.
type CleaningOptions struct {
	SelectedColumns   []string `json:"selected_columns"`
	KeepIndianOnly    bool     `json:"keep_indian_only"`
	RemoveCountryCode bool     `json:"remove_country_code"`
	MergeColumns      bool     `json:"merge_columns"`
	RemoveDuplicates  bool     `json:"remove_duplicates"`
	DropEmptyRows     bool     `json:"drop_empty_rows"`
	WhatsAppFormat    bool     `json:"whatsapp_format"`
}

// Preset names offered by the client
const (
	PresetStandard       = "standard"
	PresetWhatsAppExport = "whatsapp_export"
	PresetDedupOnly      = "dedup_only"
)

// DefaultCleaningOptions returns the options used when a request omits them
func DefaultCleaningOptions() CleaningOptions {
	return CleaningOptions{
		KeepIndianOnly:    true,
		RemoveCountryCode: true,
		RemoveDuplicates:  true,
	}
}

// PresetOptions returns a named option preset for the given columns
func PresetOptions(name string, columns []string) (CleaningOptions, bool) {
	var opts CleaningOptions
	switch name {
	case PresetStandard:
		opts = DefaultCleaningOptions()
	case PresetWhatsAppExport:
		opts = CleaningOptions{
			KeepIndianOnly:   true,
			MergeColumns:     true,
			RemoveDuplicates: true,
			DropEmptyRows:    true,
			WhatsAppFormat:   true,
		}
	case PresetDedupOnly:
		opts = CleaningOptions{RemoveDuplicates: true}
	default:
		return CleaningOptions{}, false
	}
	opts.SelectedColumns = append([]string(nil), columns...)
	return opts, true
}

// Selection returns the selected columns with repeats removed,
// keeping the first position of each name.
func (o CleaningOptions) Selection() []string {
	seen := make(map[string]bool, len(o.SelectedColumns))
	out := make([]string, 0, len(o.SelectedColumns))
	for _, col := range o.SelectedColumns {
		if seen[col] {
			continue
		}
		seen[col] = true
		out = append(out, col)
	}
	return out
}
