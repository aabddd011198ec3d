package ppp

// ConfigStore is the read-only key/value lookup the core consumes for
// its own configuration: ("ppp","mppe"), ("ppp","mppe-128"),
// ("ppp","mppe-40"), ("ppp","accm"). Implementations
// are re-readable on config reload; see the config package for a
// TOML-backed one.
type ConfigStore interface {
	Get(section, key string) (value string, ok bool)
}

// MPPEPolicy is the local stance on MPPE negotiation.
type MPPEPolicy int

const (
	// MPPEAllow negotiates encryption if the peer wants it, but accepts
	// an unencrypted link.
	MPPEAllow MPPEPolicy = iota
	// MPPEPrefer is like MPPEAllow but the layer actively advertises the
	// option rather than staying passive.
	MPPEPrefer
	// MPPERequire refuses to bring the link up without encryption.
	MPPERequire
	// MPPEDeny never advertises or accepts MPPE.
	MPPEDeny
)

// mppeDefaults is the process-wide, reloadable MPPE configuration
// snapshot. It is read into an immutable copy at each instance's Init
// time; already-running sessions keep the snapshot they started with.
type mppeDefaults struct {
	policy MPPEPolicy
	// mppe128/mppe40 mirror the literal defaults in the original source
	// (static int mppe_128 = 0; static int mppe_40 = 1) rather than
	// guessing a "both on" fallback.
	mppe128 bool
	mppe40  bool
}

// loadMPPEDefaults reads ("ppp","mppe"|"mppe-128"|"mppe-40") from store,
// falling back to MPPEAllow / mppe40=true / mppe128=false when a key is
// absent, exactly as load_config in ccp_mppe.c does.
func loadMPPEDefaults(store ConfigStore) mppeDefaults {
	d := mppeDefaults{policy: MPPEAllow, mppe40: true, mppe128: false}

	if v, ok := store.Get("ppp", "mppe"); ok {
		switch v {
		case "require":
			d.policy = MPPERequire
		case "prefer", "prefere": // the original source tolerates this misspelling
			d.policy = MPPEPrefer
		case "deny":
			d.policy = MPPEDeny
		default:
			d.policy = MPPEAllow
		}
	}

	if v, ok := store.Get("ppp", "mppe-128"); ok {
		d.mppe128 = v == "1"
	}
	if v, ok := store.Get("ppp", "mppe-40"); ok {
		d.mppe40 = v == "1"
	}

	return d
}

// accmDefaults is the process-wide, reloadable ACCM configuration
// snapshot.
type accmDefaults struct {
	allow bool
}

// loadACCMDefaults reads ("ppp","accm"), defaulting to deny.
func loadACCMDefaults(store ConfigStore) accmDefaults {
	d := accmDefaults{allow: false}
	if v, ok := store.Get("ppp", "accm"); ok {
		d.allow = v == "allow"
	}
	return d
}
