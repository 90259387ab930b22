package catalog

import (
	"context"
	"net/url"
	"path"
	"strconv"

	"storefront/internal/airtable"
	"storefront/internal/mirror"
	"storefront/internal/models"
)

const (
	KeyProducts = "products"
	KeyEvents   = "events"
	KeyDeals    = "deals"

	productPrefix = "images"
	eventPrefix   = "events"

	PlaceholderImage = "https://images.unsplash.com/photo-1578632767115-351597cf2477?w=400&h=400&fit=crop"
)

// AssetSyncer mirrors the assets of many owners into durable storage.
type AssetSyncer interface {
	SyncAll(ctx context.Context, prefix string, owners []mirror.Owner, batchSize int) ([][]string, *mirror.Stats)
}

func sortBy(q url.Values, fields ...[2]string) url.Values {
	for i, f := range fields {
		idx := strconv.Itoa(i)
		q.Set("sort["+idx+"][field]", f[0])
		q.Set("sort["+idx+"][direction]", f[1])
	}
	return q
}

// pickURLs prefers the mirrored URL for each slot and falls back to the
// remote one.
func pickURLs(remote []airtable.Attachment, mirrored []string) []string {
	out := make([]string, len(remote))
	for i, a := range remote {
		if i < len(mirrored) && mirrored[i] != "" {
			out[i] = mirrored[i]
			continue
		}
		out[i] = a.URL
	}
	return out
}

func assetRefs(owner string, attachments []airtable.Attachment) []models.AssetRef {
	refs := make([]models.AssetRef, 0, len(attachments))
	for _, a := range attachments {
		name := a.Filename
		if name == "" {
			name = filenameFromURL(a.URL)
		}
		refs = append(refs, models.AssetRef{OwnerKey: owner, Filename: name, RemoteURL: a.URL})
	}
	return refs
}

func filenameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

type Products struct {
	syncer    AssetSyncer
	batchSize int
}

func NewProducts(syncer AssetSyncer, batchSize int) *Products {
	return &Products{syncer: syncer, batchSize: batchSize}
}

func (p *Products) Key() string   { return KeyProducts }
func (p *Products) Table() string { return "Products" }

func (p *Products) Query() url.Values {
	q := url.Values{}
	q.Set("filterByFormula", "{Active}=1")
	return sortBy(q, [2]string{"Pinned", "desc"}, [2]string{"Name", "asc"})
}

// Build mirrors product images keyed by SKU. Products without a SKU keep
// their remote URLs.
func (p *Products) Build(ctx context.Context, records []airtable.Record) (any, *mirror.Stats) {
	owners := make([]mirror.Owner, len(records))
	attachments := make([][]airtable.Attachment, len(records))
	for i, r := range records {
		attachments[i] = r.Attachments("Images")
		sku := r.String("SKU")
		owners[i] = mirror.Owner{Key: sku, Assets: assetRefs(sku, attachments[i])}
	}

	mirrored, stats := p.syncer.SyncAll(ctx, productPrefix, owners, p.batchSize)

	products := make([]models.Product, 0, len(records))
	for i, r := range records {
		images := pickURLs(attachments[i], mirrored[i])
		image := PlaceholderImage
		if len(images) > 0 {
			image = images[0]
		}

		var sku *string
		if s := r.String("SKU"); s != "" {
			sku = &s
		}

		products = append(products, models.Product{
			ID:          r.ID,
			SKU:         sku,
			Name:        r.String("Name"),
			Description: r.String("Description"),
			Price:       r.Float("Price"),
			Images:      images,
			Image:       image,
			MadeByMe:    r.Bool("Made By Me"),
			Colors:      r.Strings("Colors"),
			Sizes:       r.Strings("Sizes"),
			Tags:        r.Strings("Tags"),
			Pinned:      r.Bool("Pinned"),
		})
	}
	return products, stats
}

type Events struct {
	syncer    AssetSyncer
	batchSize int
}

func NewEvents(syncer AssetSyncer, batchSize int) *Events {
	return &Events{syncer: syncer, batchSize: batchSize}
}

func (e *Events) Key() string   { return KeyEvents }
func (e *Events) Table() string { return "Events" }

func (e *Events) Query() url.Values {
	return sortBy(url.Values{}, [2]string{"Date", "asc"})
}

func (e *Events) Build(ctx context.Context, records []airtable.Record) (any, *mirror.Stats) {
	owners := make([]mirror.Owner, len(records))
	attachments := make([][]airtable.Attachment, len(records))
	for i, r := range records {
		attachments[i] = r.Attachments("Image", "Images")
		owners[i] = mirror.Owner{Key: r.ID, Assets: assetRefs(r.ID, attachments[i])}
	}

	mirrored, stats := e.syncer.SyncAll(ctx, eventPrefix, owners, e.batchSize)

	events := make([]models.Event, 0, len(records))
	for i, r := range records {
		status := r.String("Status")
		if status == "" {
			status = "Upcoming"
		}
		events = append(events, models.Event{
			ID:           r.ID,
			Name:         r.FirstString("Name", "Event Name"),
			Location:     r.String("Location"),
			Date:         r.String("Date"),
			Time:         r.String("Time"),
			StartTime:    r.String("Start Time"),
			EndTime:      r.String("End Time"),
			EventType:    r.String("Event Type"),
			City:         r.String("City"),
			State:        r.String("State"),
			Description:  r.String("Description"),
			Website:      r.String("Website"),
			Status:       status,
			Featured:     r.Bool("Featured"),
			Images:       pickURLs(attachments[i], mirrored[i]),
			SpecialItems: r.String("Special Items"),
			Notes:        r.String("Notes"),
		})
	}
	return events, stats
}

// Deals are served without any asset mirroring.
type Deals struct{}

func NewDeals() *Deals { return &Deals{} }

func (d *Deals) Key() string   { return KeyDeals }
func (d *Deals) Table() string { return "Deals" }

func (d *Deals) Query() url.Values {
	q := url.Values{}
	q.Set("filterByFormula", "{Active}=1")
	return sortBy(q, [2]string{"Min Amount", "asc"})
}

func (d *Deals) Build(_ context.Context, records []airtable.Record) (any, *mirror.Stats) {
	deals := make([]models.Deal, 0, len(records))
	for _, r := range records {
		discountType := r.String("Discount Type")
		if discountType == "" {
			discountType = "Percentage"
		}
		deals = append(deals, models.Deal{
			ID:            r.ID,
			Name:          r.String("Name"),
			Description:   r.String("Description"),
			MinAmount:     r.Float("Min Amount"),
			DiscountValue: r.Float("Discount Value"),
			DiscountType:  discountType,
			Active:        r.Bool("Active"),
		})
	}
	return deals, nil
}
