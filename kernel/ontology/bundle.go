package ontology

// BundleOwner identifies the signer of a Protocol Bundle.
type BundleOwner struct {
	EntityID  string `json:"entityId"`
	PublicKey string `json:"publicKey"`
}

// Bundle is a signed collection of Protocols installed atomically.
// BundleID is hash(canonical(bundle without Signature and BundleID));
// Signature is that hash signed by the owner's key.
type Bundle struct {
	BundleID  string      `json:"bundleId"`
	Protocols []*Protocol `json:"protocols"`
	Owner     BundleOwner `json:"owner"`
	Signature string      `json:"signature"`
}

// BundleIDView is the struct canonicalized to derive BundleID — everything
// in Bundle except the two fields the id/signature themselves depend on.
type BundleIDView struct {
	Protocols []*Protocol `json:"protocols"`
	Owner     BundleOwner `json:"owner"`
}

// IDView extracts the portion of the bundle hashed to produce BundleID.
func (b *Bundle) IDView() BundleIDView {
	return BundleIDView{Protocols: b.Protocols, Owner: b.Owner}
}
