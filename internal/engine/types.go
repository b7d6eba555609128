package engine

// Seeds identifies a provably fair stream.
type Seeds struct {
	Server string `json:"server_seed"` // ASCII; do NOT hex-decode
	Client string `json:"client_seed"`
}

// Valid reports whether both seeds are present.
func (s Seeds) Valid() bool {
	return s.Server != "" && s.Client != ""
}
