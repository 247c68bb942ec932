package testutil

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSampleFixtures(t *testing.T) {
	GenerateTestImages(t)
	CreateSampleFixtures(t)

	fixturesDir := GetFixturesDir(t)
	assert.True(t, DirExists(fixturesDir))
	for _, s := range StandardScenes() {
		assert.True(t, FileExists(fixturesDir+"/"+s.Name+".json"))
	}
}

func TestLoadFixture(t *testing.T) {
	GenerateTestImages(t)
	CreateSampleFixtures(t)

	fixture := LoadFixture(t, "ellipse")
	assert.Equal(t, "ellipse", fixture.Name)
	assert.Equal(t, "images/scenes/ellipse.png", fixture.InputFile)
	assert.Equal(t, 5, fixture.Iterations)

	// The hint rectangle contains the object box.
	obj := DefaultSceneConfig().Object
	assert.True(t, obj.In(fixture.Rect.Rectangle()))
}

func TestSaveAndLoadFixture(t *testing.T) {
	fixture := TestFixture{
		Name:        "test_fixture",
		Description: "Test fixture for unit testing",
		InputFile:   "test/input.png",
		Rect:        BoundingBox{X: 10, Y: 20, Width: 50, Height: 15},
		Iterations:  3,
		MinIoU:      0.8,
	}

	SaveFixture(t, fixture)

	loadedFixture := LoadFixture(t, "test_fixture")
	assert.Equal(t, fixture.Name, loadedFixture.Name)
	assert.Equal(t, fixture.Description, loadedFixture.Description)
	assert.Equal(t, fixture.InputFile, loadedFixture.InputFile)
	assert.Equal(t, fixture.Rect, loadedFixture.Rect)
	assert.InDelta(t, fixture.MinIoU, loadedFixture.MinIoU, 1e-12)
}

func TestValidateFixture(t *testing.T) {
	GenerateTestImages(t)
	CreateSampleFixtures(t)

	fixture := LoadFixture(t, "block")

	require.NotPanics(t, func() {
		ValidateFixture(t, fixture)
	})
}

func TestGetFixtureInputPath(t *testing.T) {
	fixture := TestFixture{
		InputFile: "images/scenes/test.png",
	}

	path := GetFixtureInputPath(t, fixture)
	assert.Contains(t, path, "testdata/images/scenes/test.png")
}

func TestBoundingBoxRectangle(t *testing.T) {
	b := BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}
	assert.Equal(t, image.Rect(1, 2, 4, 6), b.Rectangle())
}
