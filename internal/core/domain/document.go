package domain

import (
	"fmt"
	"time"
)

// Document represents an uploaded file after successful ingestion.
// A document is owned exclusively by its uploader and is immutable;
// re-uploading the same file creates a new document.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// OwnerUserID is the user who uploaded the document.
	OwnerUserID string

	// OwnerRole is the role the owner held at upload time.
	OwnerRole Role

	// Filename is the original upload filename.
	Filename string

	// ContentType is the declared MIME type.
	ContentType string

	// ByteSize is the size of the original upload in bytes.
	ByteSize int64

	// UploadedAt is when ingestion completed.
	UploadedAt time.Time

	// Metadata carries format-specific structured metadata.
	Metadata DocumentMetadata
}

// MetadataKind discriminates the DocumentMetadata variants.
type MetadataKind string

const (
	// MetadataGeneric is plain text-bearing content with no
	// format-specific side data.
	MetadataGeneric MetadataKind = "generic"

	// MetadataDicom is a DICOM study with tag metadata.
	MetadataDicom MetadataKind = "dicom"

	// MetadataImage is a raster image.
	MetadataImage MetadataKind = "image"
)

// DocumentMetadata is a tagged union over the supported metadata shapes.
// Exactly the variant named by Kind is populated; the rest are nil.
// Keeping this closed (rather than an open map) keeps the vector store
// payload and filter contracts type-safe.
type DocumentMetadata struct {
	// Kind selects the populated variant.
	Kind MetadataKind

	// Dicom holds DICOM tag metadata when Kind is MetadataDicom.
	Dicom *DicomMetadata

	// Image holds raster image metadata when Kind is MetadataImage.
	Image *ImageMetadata
}

// HasMedicalImage reports whether the document carries medical image
// content (DICOM always; raster images when classified as medical).
func (m DocumentMetadata) HasMedicalImage() bool {
	switch m.Kind {
	case MetadataDicom:
		return true
	case MetadataImage:
		return m.Image != nil && m.Image.MedicalType != ""
	}
	return false
}

// DicomMetadata is the subset of DICOM tags the engine retains.
// Patient-identifying tags are anonymised by the extractor before
// they reach this struct.
type DicomMetadata struct {
	// Modality is the imaging modality (CT, MR, CR, US, ...).
	Modality string

	// BodyPart is the examined body part, when tagged.
	BodyPart string

	// StudyDate is the DICOM study date in its original YYYYMMDD form.
	StudyDate string

	// AnonPatientID is a non-identifying stand-in for the patient id tag.
	AnonPatientID string
}

// ImageMetadata describes a raster image upload.
type ImageMetadata struct {
	// Format is the decoded format name (png, jpeg, ...).
	Format string

	// Width and Height are pixel dimensions.
	Width  int
	Height int

	// MedicalType is the classification label when the image was
	// recognised as medical content (xray, scan_printout, ...).
	// Empty for non-medical images.
	MedicalType string
}

// Chunk is the unit of embedding and retrieval: a bounded slice of a
// document's extracted text. Chunk identity is deterministic so that
// re-ingestion of the same document replaces its chunks instead of
// duplicating them.
type Chunk struct {
	// ID is ChunkID(DocumentID, Index).
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// OwnerUserID mirrors the parent document's owner. Every vector
	// store write carries it; this is the invariant that prevents
	// cross-user leakage.
	OwnerUserID string

	// OwnerRole mirrors the parent document's owner role.
	OwnerRole Role

	// Index is the zero-based, contiguous sequence index.
	Index int

	// Text is the chunk text.
	Text string

	// Embedding is the vector representation. Populated during
	// ingestion; not persisted relationally.
	Embedding []float32

	// MedicalKeywords are dictionary terms found in the text.
	MedicalKeywords []string

	// HasMedicalImage mirrors the parent document's flag.
	HasMedicalImage bool
}

// ChunkID builds the deterministic chunk identifier for a document and
// sequence index.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s:%d", documentID, index)
}
