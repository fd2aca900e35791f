package tree

import "zipperdb.dev/codec"

func keyString(k *codec.Key) any {
	if k == nil {
		return nil
	}
	return k.String()
}

// NewItem builds a leaf M.Item record. folder may be nil for an
// unattached item.
func NewItem(reg *codec.Registry, name, title string, folder *codec.Key, description string) (*codec.Record, error) {
	schema, err := reg.Lookup(ItemName)
	if err != nil {
		return nil, err
	}
	rec := codec.NewRecord(schema)
	rec.Set("name", name)
	rec.Set("title", title)
	rec.Set("folder", keyString(folder))
	rec.Set("description", description)
	return rec, nil
}

// NewFolder builds an M.Folder record with an empty contents map.
// defaultName names the child served when a path resolves to this
// folder without naming a further child; it may be "".
func NewFolder(reg *codec.Registry, name, title string, folder *codec.Key, defaultName, description string) (*codec.Record, error) {
	schema, err := reg.Lookup(FolderName)
	if err != nil {
		return nil, err
	}
	rec := codec.NewRecord(schema)
	rec.Set("name", name)
	rec.Set("title", title)
	rec.Set("folder", keyString(folder))
	rec.Set("default_name", defaultName)
	rec.Set("description", description)
	rec.Set("contents", codec.NewOMap())
	return rec, nil
}

// NewSite builds the root M.Site record (folder is always nil).
func NewSite(reg *codec.Registry, title, defaultName, description string) (*codec.Record, error) {
	schema, err := reg.Lookup(SiteName)
	if err != nil {
		return nil, err
	}
	rec := codec.NewRecord(schema)
	rec.Set("name", rootName)
	rec.Set("title", title)
	rec.Set("folder", nil)
	rec.Set("default_name", defaultName)
	rec.Set("description", description)
	rec.Set("contents", codec.NewOMap())
	return rec, nil
}

// NewSubdomain builds an M.Subdomain record mapping a hostname to
// target, the Key of the Site or Folder it serves.
func NewSubdomain(reg *codec.Registry, name string, target *codec.Key) (*codec.Record, error) {
	schema, err := reg.Lookup(SubdomainName)
	if err != nil {
		return nil, err
	}
	rec := codec.NewRecord(schema)
	rec.Set("name", name)
	rec.Set("title", "")
	rec.Set("folder", nil)
	rec.Set("description", "")
	rec.Set("target", keyString(target))
	return rec, nil
}

// NewPage builds an M.Page leaf record carrying body content.
func NewPage(reg *codec.Registry, name, title string, folder *codec.Key, description, body string) (*codec.Record, error) {
	schema, err := reg.Lookup(PageName)
	if err != nil {
		return nil, err
	}
	rec := codec.NewRecord(schema)
	rec.Set("name", name)
	rec.Set("title", title)
	rec.Set("folder", keyString(folder))
	rec.Set("description", description)
	rec.Set("body", body)
	return rec, nil
}

// Attach links child under folder: it sets child's folder pointer and
// inserts it into folder's contents under name, per the invariant that a
// folder's contents[child.name] == child.key iff child.folder ==
// folder.key. Both records are mutated in place; callers commit them
// through a zipper transaction.
func Attach(folderRec *codec.Record, folderKey *codec.Key, child *codec.Record, childKey *codec.Key) {
	child.Set("folder", keyString(folderKey))
	if om, ok := folderRec.Get("contents").(*codec.OMap); ok {
		name, _ := child.Get("name").(string)
		om.Set(name, childKey.String())
	}
}
