//go:build darwin

package diskstat

import "github.com/lufia/iostat"

// Sample reads the current cumulative read/write byte counters across all
// drives iostat can see.
func Sample() (Stats, error) {
	drives, err := iostat.ReadDriveStats()
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	for _, d := range drives {
		s.ReadBytes += d.BytesRead
		s.WriteBytes += d.BytesWritten
	}
	return s, nil
}
