package testutil

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFixture describes one segmentation case: an input image, the hint
// rectangle and the quality the result must reach against the ground truth.
type TestFixture struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputFile   string                 `json:"input_file"`
	TruthFile   string                 `json:"truth_file"`
	Rect        BoundingBox            `json:"rect"`
	Iterations  int                    `json:"iterations"`
	MinIoU      float64                `json:"min_iou"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// BoundingBox represents a rectangular bounding box.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rectangle converts the box to an image.Rectangle.
func (b BoundingBox) Rectangle() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// LoadFixture loads a test fixture from JSON file.
func LoadFixture(t *testing.T, name string) TestFixture {
	t.Helper()

	fixturesDir := GetFixturesDir(t)
	fixturePath := filepath.Join(fixturesDir, name+".json")

	data, err := os.ReadFile(fixturePath) //nolint:gosec // G304: Reading test fixture files with controlled paths
	require.NoError(t, err, "Failed to read fixture file: %s", fixturePath)

	var fixture TestFixture
	err = json.Unmarshal(data, &fixture)
	require.NoError(t, err, "Failed to unmarshal fixture JSON")

	return fixture
}

// SaveFixture saves a test fixture to JSON file.
func SaveFixture(t *testing.T, fixture TestFixture) {
	t.Helper()

	fixturesDir := GetFixturesDir(t)
	require.NoError(t, EnsureDir(fixturesDir))

	fixturePath := filepath.Join(fixturesDir, fixture.Name+".json")

	data, err := json.MarshalIndent(fixture, "", "  ")
	require.NoError(t, err, "Failed to marshal fixture to JSON")

	err = os.WriteFile(fixturePath, data, 0o600)
	require.NoError(t, err, "Failed to write fixture file: %s", fixturePath)
}

// SceneFixture builds the fixture of a standard scene: the hint rectangle is
// the object box grown by a quarter of its size on each side.
func SceneFixture(s NamedScene) TestFixture {
	obj := s.Config.Object
	mx, my := obj.Dx()/4, obj.Dy()/4
	rect := image.Rect(obj.Min.X-mx, obj.Min.Y-my, obj.Max.X+mx, obj.Max.Y+my).
		Intersect(image.Rect(0, 0, s.Config.Size.Width, s.Config.Size.Height))

	return TestFixture{
		Name:        s.Name,
		Description: "Segmentation of the " + s.Name + " scene from a loose rectangle",
		InputFile:   "images/scenes/" + s.Name + ".png",
		TruthFile:   "images/scenes/" + s.Name + ".truth.png",
		Rect: BoundingBox{
			X:      rect.Min.X,
			Y:      rect.Min.Y,
			Width:  rect.Dx(),
			Height: rect.Dy(),
		},
		Iterations: 5,
		MinIoU:     0.9,
		Metadata: map[string]interface{}{
			"image_size": map[string]int{
				"width":  s.Config.Size.Width,
				"height": s.Config.Size.Height,
			},
			"noise": s.Config.Noise,
			"blur":  s.Config.Blur,
		},
	}
}

// CreateSampleFixtures creates one fixture per standard scene.
func CreateSampleFixtures(t *testing.T) {
	t.Helper()

	for _, s := range StandardScenes() {
		SaveFixture(t, SceneFixture(s))
	}
}

// GetFixtureInputPath returns the full path to a fixture's input file.
func GetFixtureInputPath(t *testing.T, fixture TestFixture) string {
	t.Helper()

	testDataDir := GetTestDataDir(t)
	return filepath.Join(testDataDir, fixture.InputFile)
}

// ValidateFixture validates that a fixture's input and truth files exist.
func ValidateFixture(t *testing.T, fixture TestFixture) {
	t.Helper()

	inputPath := GetFixtureInputPath(t, fixture)
	require.True(t, FileExists(inputPath), "Fixture input file does not exist: %s", inputPath)
	truthPath := filepath.Join(GetTestDataDir(t), fixture.TruthFile)
	require.True(t, FileExists(truthPath), "Fixture truth file does not exist: %s", truthPath)
}
