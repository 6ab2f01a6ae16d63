package path

import "strings"

// File is the Azure File Service (AFS) path model: {acc, share,
// parent_dir, fs_ent}. parent_dir is optional; fs_ent is either a file
// or directory name.
type File struct {
	Account   string
	Share     string
	ParentDir string
	FSEnt     string
}

// ParseFile parses "/acc/share[/parent/dir.../]ent". The last segment is
// FSEnt; everything between share and the last segment is ParentDir.
func ParseFile(p string) (File, error) {
	segs := splitSegments(p)
	f := File{}
	if len(segs) >= 1 {
		f.Account = segs[0]
	}
	if len(segs) >= 2 {
		f.Share = segs[1]
	}
	if len(segs) >= 3 {
		f.FSEnt = segs[len(segs)-1]
		if len(segs) > 3 {
			f.ParentDir = strings.Join(segs[2:len(segs)-1], "/")
		}
	}
	return f, nil
}

// Format renders the path model back to its normalised string form.
func (f File) Format() string {
	segs := []string{f.Account, f.Share}
	if f.ParentDir != "" {
		segs = append(segs, strings.Split(f.ParentDir, "/")...)
	}
	if f.FSEnt != "" {
		segs = append(segs, f.FSEnt)
	}
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if s != "" {
			out = append(out, s)
		}
	}
	return "/" + strings.Join(out, "/")
}
