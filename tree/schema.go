package tree

import "zipperdb.dev/codec"

// Type names of the content tree's record family (spec §4.6).
var (
	ItemName      = codec.NewTypeName("M.Item")
	FolderName    = codec.NewTypeName("M.Folder")
	SiteName      = codec.NewTypeName("M.Site")
	SubdomainName = codec.NewTypeName("M.Subdomain")
	PageName      = codec.NewTypeName("M.Page")
)

// rootName is the id of the site root's well-known Key, per invariant:
// "root is stored under the well-known Key (Site, "root")".
const rootName = "root"

var nullableKey = codec.NewUnion(codec.Null, codec.String)

// RegisterSchemas declares the content tree's record schemas into reg:
// Item (name, title, folder, description), Folder extends Item (adds
// default_name, a redeclared description, and contents), Site extends
// Folder with no fields of its own, Subdomain extends Item (adds a
// target Key pointing at the Site/Folder it resolves to), and Page
// extends Item (adds a body field for leaf content).
func RegisterSchemas(reg *codec.Registry) error {
	item := &codec.Schema{
		Kind: codec.KindRecord,
		Name: ItemName,
		Fields: []codec.Field{
			{Name: "name", Type: codec.String},
			{Name: "title", Type: codec.String},
			{Name: "folder", Type: nullableKey},
			{Name: "description", Type: codec.String},
		},
	}
	if err := reg.Register(ItemName, item); err != nil {
		return err
	}

	folder := &codec.Schema{
		Kind: codec.KindRecord,
		Name: FolderName,
		Base: ItemName,
		Fields: []codec.Field{
			{Name: "name", Type: item.Fields[0].Type, FromBase: true},
			{Name: "title", Type: item.Fields[1].Type, FromBase: true},
			{Name: "folder", Type: item.Fields[2].Type, FromBase: true},
			{Name: "default_name", Type: codec.String},
			{Name: "description", Type: codec.String},
			{Name: "contents", Type: codec.NewOmap(codec.String)},
		},
	}
	if err := reg.Register(FolderName, folder); err != nil {
		return err
	}

	site := &codec.Schema{
		Kind:   codec.KindRecord,
		Name:   SiteName,
		Base:   FolderName,
		Fields: append([]codec.Field(nil), folder.Fields...),
	}
	if err := reg.Register(SiteName, site); err != nil {
		return err
	}

	subdomainFields := append(append([]codec.Field(nil), item.Fields...), codec.Field{Name: "target", Type: nullableKey})
	subdomain := &codec.Schema{
		Kind:   codec.KindRecord,
		Name:   SubdomainName,
		Base:   ItemName,
		Fields: subdomainFields,
	}
	if err := reg.Register(SubdomainName, subdomain); err != nil {
		return err
	}

	pageFields := append(append([]codec.Field(nil), item.Fields...), codec.Field{Name: "body", Type: codec.String})
	page := &codec.Schema{
		Kind:   codec.KindRecord,
		Name:   PageName,
		Base:   ItemName,
		Fields: pageFields,
	}
	return reg.Register(PageName, page)
}

// RootKey is the well-known Key of the site root.
func RootKey() (*codec.Key, error) {
	return codec.NewKey(SiteName, rootName)
}
