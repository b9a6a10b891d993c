package plugin

// Descriptor identifies a discovered extension and carries the
// metadata its script exported, if any.
type Descriptor struct {
	// ID is the extension's stable identity: the directory name for
	// directory extensions, the file stem for single-file ones.
	ID string
	// Name is the display name the script exported, or "" if none.
	Name string
	// Version is the version string the script exported, or "".
	Version string
	// Author is the author the script exported, or "".
	Author string
	// Description is the description the script exported, or "".
	Description string
	// Path is the absolute path of the entry-point script.
	Path string
	// Enabled reflects the persisted enabled flag.
	Enabled bool
}

// DisplayName returns the exported name, falling back to the ID.
func (d *Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
