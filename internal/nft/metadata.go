package nft

// Metadata is the off-chain JSON document a token's URI points at
// (Metaplex token standard).
type Metadata struct {
	Name                 string      `json:"name"`
	Symbol               string      `json:"symbol"`
	Description          string      `json:"description"`
	SellerFeeBasisPoints int         `json:"seller_fee_basis_points"`
	Image                string      `json:"image"`
	Attributes           []Attribute `json:"attributes"`
	Properties           Properties  `json:"properties"`
}

type Properties struct {
	Files    []File    `json:"files"`
	Category string    `json:"category"`
	Creators []Creator `json:"creators,omitempty"`
}

type File struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// NewMetadata builds the document for cfg once its image has been published.
func NewMetadata(cfg TokenConfig, imageURI string) Metadata {
	attrs := make([]Attribute, len(cfg.Attributes))
	copy(attrs, cfg.Attributes)

	return Metadata{
		Name:                 cfg.DisplayName,
		Symbol:               cfg.Symbol,
		Description:          cfg.Description,
		SellerFeeBasisPoints: cfg.RoyaltyBasisPoints,
		Image:                imageURI,
		Attributes:           attrs,
		Properties: Properties{
			Files:    []File{{URI: imageURI, Type: cfg.ImageMimeType}},
			Category: "image",
			Creators: cfg.Creators,
		},
	}
}
