package model

// ReservedFolderName is the per-user system folder that newly uploaded
// documents land in; it never shows up in category listings and cannot be
// renamed or deleted.
const ReservedFolderName = "Recently Added"

type Folder struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	ParentFolderID *string `json:"parent_folder_id"`
	Emoji          string  `json:"emoji"`
	State          int     `json:"-"`
	Ctime          int64   `json:"ctime"`
	Mtime          int64   `json:"mtime"`
}

// Category is the derived projection of a top-level folder: nil parent,
// non-reserved name, plus the count of documents filed directly under it.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Emoji     string `json:"emoji"`
	FileCount int    `json:"file_count"`
}

// SubtreeFolderIDs returns rootID plus every descendant folder id exactly
// once. Folders form a tree, so a visited set is enough to guarantee
// uniqueness. Both the server cascade delete and the client-side store use
// this to agree on what a folder delete covers.
func SubtreeFolderIDs(folders []Folder, rootID string) []string {
	children := make(map[string][]string, len(folders))
	for _, folder := range folders {
		if folder.ParentFolderID == nil {
			continue
		}
		parent := *folder.ParentFolderID
		children[parent] = append(children[parent], folder.ID)
	}
	seen := map[string]bool{rootID: true}
	result := []string{rootID}
	queue := []string{rootID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if seen[child] {
				continue
			}
			seen[child] = true
			result = append(result, child)
			queue = append(queue, child)
		}
	}
	return result
}
