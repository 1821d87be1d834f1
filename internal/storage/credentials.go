package storage

// Credentials exposes the stored license key and logged-in flag on top of
// Prefs. The license client consumes this interface; the UI layer owns the
// values' lifecycle.
type Credentials interface {
	LicenseKey() string
	SetLicenseKey(key string) error
	LoggedIn() bool
	SetLoggedIn(v bool) error
	ClearUserData() error
}

// PrefsCredentials implements Credentials over a Prefs store
type PrefsCredentials struct {
	prefs *Prefs
}

// NewCredentials wraps prefs as a Credentials provider
func NewCredentials(prefs *Prefs) *PrefsCredentials {
	return &PrefsCredentials{prefs: prefs}
}

func (c *PrefsCredentials) LicenseKey() string {
	v, _ := c.prefs.Get(KeyLicenseKey)
	return v
}

func (c *PrefsCredentials) SetLicenseKey(key string) error {
	return c.prefs.Set(KeyLicenseKey, key)
}

func (c *PrefsCredentials) LoggedIn() bool {
	return c.prefs.GetBool(KeyLoggedIn)
}

func (c *PrefsCredentials) SetLoggedIn(v bool) error {
	return c.prefs.SetBool(KeyLoggedIn, v)
}

// ClearUserData removes the stored license key and logged-in flag.
// The session envelope is owned by the session store and cleared separately.
func (c *PrefsCredentials) ClearUserData() error {
	if err := c.prefs.Delete(KeyLicenseKey); err != nil {
		return err
	}
	return c.prefs.Delete(KeyLoggedIn)
}
