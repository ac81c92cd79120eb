package sbc

// Target identifies one gateway host and the transformation-table entry
// that holds its on-call forwarding number. The list of targets is fixed
// configuration, not user-editable data.
type Target struct {
	// Name is the short host name used in outcomes and logs.
	Name string `mapstructure:"name"`
	// Host is the full management hostname or host:port.
	Host string `mapstructure:"host"`
	// Resource is the REST path of the transformation entry carrying the
	// on-call number, relative to /rest.
	Resource string `mapstructure:"resource"`
}

// DefaultTargets returns the two production gateway hosts. Each SBC keeps
// its on-call number in a different transformation table.
func DefaultTargets() []Target {
	return []Target{
		{
			Name:     "pernetgw01",
			Host:     "pernetgw01.example.org",
			Resource: "transformationtable/20/transformationentry/9",
		},
		{
			Name:     "parnetgw01",
			Host:     "parnetgw01.example.org",
			Resource: "transformationtable/17/transformationentry/9",
		},
	}
}
