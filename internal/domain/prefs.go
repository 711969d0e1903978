package domain

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Preferences are the only durable client state.
type Preferences struct {
	AutoReconnect bool  `mapstructure:"auto_reconnect"`
	Theme         Theme `mapstructure:"theme"`
}

func DefaultPreferences() Preferences {
	return Preferences{AutoReconnect: true, Theme: ThemeLight}
}
