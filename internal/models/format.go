package models

// OutputFormat is a named poster size, in the renderer's inch units.
type OutputFormat struct {
	Name   string  `mapstructure:"name" json:"name"`
	Width  float64 `mapstructure:"width" json:"width"`
	Height float64 `mapstructure:"height" json:"height"`
}

// DefaultFormats returns the fixed format table in generation order.
func DefaultFormats() []OutputFormat {
	return []OutputFormat{
		{Name: "Instagram_Post", Width: 3.6, Height: 3.6},
		{Name: "Mobile_Wallpaper", Width: 3.6, Height: 6.4},
		{Name: "HD_Wallpaper", Width: 6.4, Height: 3.6},
		{Name: "4K_Wallpaper", Width: 12.8, Height: 7.2},
		{Name: "A4_Print", Width: 8.3, Height: 11.7},
	}
}
