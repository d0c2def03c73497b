package extractors

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/carevault/internal/core/domain"
	"github.com/custodia-labs/carevault/internal/core/ports/driven"
)

// Ensure Dicom implements the interface.
var _ driven.ContentExtractor = (*Dicom)(nil)

// dicomModalities maps DICOM modality codes to readable labels.
var dicomModalities = map[string]string{
	"CR": "computed radiography",
	"CT": "computed tomography",
	"MR": "magnetic resonance",
	"NM": "nuclear medicine",
	"US": "ultrasound",
	"XA": "x-ray angiography",
	"DX": "digital radiography",
	"MG": "mammography",
	"PT": "positron emission tomography",
	"ES": "endoscopy",
}

// Tags retained from the data set.
const (
	tagStudyDate = 0x0008_0020
	tagModality  = 0x0008_0060
	tagPatientID = 0x0010_0020
	tagBodyPart  = 0x0018_0015
	tagPixelData = 0x7FE0_0010
)

// Dicom handles DICOM medical images. Pixel data is never interpreted;
// the extractor walks the explicit-VR data set for the tag metadata the
// engine retains (modality, body part, study date, patient id) and
// builds a retrievable description from it. The patient id tag is
// anonymised before it leaves this package.
type Dicom struct{}

// NewDicom creates a DICOM extractor.
func NewDicom() *Dicom {
	return &Dicom{}
}

// Extensions returns the extensions this extractor handles.
func (e *Dicom) Extensions() []string {
	return []string{".dcm", ".dicom", ".ima", ".img"}
}

// Extract parses the tag metadata and builds the description text.
func (e *Dicom) Extract(_ context.Context, data []byte, filename string) (*driven.Extraction, error) {
	meta, err := parseDicomTags(data)
	if err != nil {
		return nil, err
	}

	return &driven.Extraction{
		Text: describeDicom(filename, meta),
		Metadata: domain.DocumentMetadata{
			Kind:  domain.MetadataDicom,
			Dicom: meta,
		},
	}, nil
}

// parseDicomTags validates the preamble and walks the explicit-VR
// little-endian data set until the retained tags are collected or pixel
// data begins.
func parseDicomTags(data []byte) (*domain.DicomMetadata, error) {
	// 128-byte preamble followed by the "DICM" magic.
	if len(data) < 132 || string(data[128:132]) != "DICM" {
		return nil, fmt.Errorf("%w: missing DICM preamble", domain.ErrCorruptFile)
	}

	meta := &domain.DicomMetadata{}
	pos := 132

	for pos+8 <= len(data) {
		group := binary.LittleEndian.Uint16(data[pos:])
		element := binary.LittleEndian.Uint16(data[pos+2:])
		tag := uint32(group)<<16 | uint32(element)
		vr := string(data[pos+4 : pos+6])

		var valueLen int
		var valueStart int

		switch vr {
		case "OB", "OW", "OF", "SQ", "UT", "UN":
			// Long-form VRs carry 2 reserved bytes and a 4-byte length.
			if pos+12 > len(data) {
				return meta, nil
			}
			valueLen = int(binary.LittleEndian.Uint32(data[pos+8:]))
			valueStart = pos + 12
		default:
			valueLen = int(binary.LittleEndian.Uint16(data[pos+6:]))
			valueStart = pos + 8
		}

		if tag == tagPixelData {
			break
		}
		if valueLen < 0 || valueStart+valueLen > len(data) {
			// Undefined or truncated lengths end the walk; whatever
			// was collected so far still describes the study.
			break
		}

		value := strings.TrimRight(string(data[valueStart:valueStart+valueLen]), " \x00")
		switch tag {
		case tagStudyDate:
			meta.StudyDate = value
		case tagModality:
			meta.Modality = value
		case tagBodyPart:
			meta.BodyPart = value
		case tagPatientID:
			meta.AnonPatientID = anonymiseID(value)
		}

		if meta.StudyDate != "" && meta.Modality != "" && meta.BodyPart != "" && meta.AnonPatientID != "" {
			break
		}
		pos = valueStart + valueLen
	}

	return meta, nil
}

// anonymiseID replaces a patient identifier with a short stable hash so
// studies from the same patient stay correlatable without exposing the
// original id.
func anonymiseID(id string) string {
	if id == "" {
		return ""
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return fmt.Sprintf("anon-%08x", h.Sum32())
}

// describeDicom builds the retrievable description for a DICOM study.
func describeDicom(filename string, meta *domain.DicomMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DICOM medical imaging study: %s.", filepath.Base(filename))

	if meta.Modality != "" {
		label, ok := dicomModalities[meta.Modality]
		if !ok {
			label = meta.Modality
		}
		fmt.Fprintf(&b, " Modality: %s (%s).", label, meta.Modality)
	}
	if meta.BodyPart != "" {
		fmt.Fprintf(&b, " Body part examined: %s.", strings.ToLower(meta.BodyPart))
	}
	if meta.StudyDate != "" {
		fmt.Fprintf(&b, " Study date: %s.", meta.StudyDate)
	}
	if meta.AnonPatientID != "" {
		fmt.Fprintf(&b, " Anonymised patient id: %s.", meta.AnonPatientID)
	}
	return b.String()
}
