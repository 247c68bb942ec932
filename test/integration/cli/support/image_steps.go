package support

import (
	"fmt"
	"image"
	"os"

	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/MeKo-Tech/cutout/internal/utils"
	"github.com/cucumber/godog"
)

// minIoU is the overlap a segmentation of a synthetic scene must reach.
const minIoU = 0.85

func sceneByName(name string) (testutil.NamedScene, error) {
	for _, s := range testutil.StandardScenes() {
		if s.Name == name {
			return s, nil
		}
	}
	return testutil.NamedScene{}, fmt.Errorf("unknown scene %q", name)
}

// theTestScenesAreAvailable renders every standard scene into the working
// directory.
func (testCtx *TestContext) theTestScenesAreAvailable() error {
	for _, s := range testutil.StandardScenes() {
		if err := testCtx.theSceneIsAvailableAs(s.Name, s.Name+".png"); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) theSceneIsAvailableAs(name, file string) error {
	s, err := sceneByName(name)
	if err != nil {
		return err
	}
	img, _ := testutil.GenerateScene(s.Config)
	return utils.SaveImage(testCtx.Path(file), img)
}

// aMaskHintForScene writes the ground truth of a scene as a black and
// white hint image.
func (testCtx *TestContext) aMaskHintForScene(file, name string) error {
	s, err := sceneByName(name)
	if err != nil {
		return err
	}
	_, truth := testutil.GenerateScene(s.Config)
	return utils.SaveImage(testCtx.Path(file), truth)
}

func (testCtx *TestContext) aCorruptImage(file string) error {
	return os.WriteFile(testCtx.Path(file), []byte("this is not an image"), 0o600)
}

// theMaskShouldMatchScene compares a written binary mask with the scene's
// ground truth.
func (testCtx *TestContext) theMaskShouldMatchScene(file, name string) error {
	s, err := sceneByName(name)
	if err != nil {
		return err
	}
	_, truth := testutil.GenerateScene(s.Config)

	mask, err := utils.LoadMask(testCtx.Path(file))
	if err != nil {
		return err
	}
	if iou := testutil.MaskIoU(mask.Binary(), truth); iou < minIoU {
		return fmt.Errorf("mask %s overlaps the object with IoU %.3f, want at least %.2f", file, iou, minIoU)
	}
	return nil
}

func (testCtx *TestContext) theImageShouldHaveSize(file string, w, h int) error {
	img, _, err := utils.LoadImage(testCtx.Path(file))
	if err != nil {
		return err
	}
	if got := img.Bounds().Size(); got != image.Pt(w, h) {
		return fmt.Errorf("image %s is %v, want %dx%d", file, got, w, h)
	}
	return nil
}

func (testCtx *TestContext) theImageShouldHaveTransparentCorners(file string) error {
	img, _, err := utils.LoadImage(testCtx.Path(file))
	if err != nil {
		return err
	}
	b := img.Bounds()
	for _, p := range []image.Point{b.Min, {b.Max.X - 1, b.Min.Y}, {b.Min.X, b.Max.Y - 1}, b.Max.Sub(image.Pt(1, 1))} {
		if _, _, _, a := img.At(p.X, p.Y).RGBA(); a != 0 {
			return fmt.Errorf("pixel %v of %s is not transparent (alpha %d)", p, file, a)
		}
	}
	return nil
}

// RegisterImageSteps registers scene and image assertion steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the test scenes are available$`, testCtx.theTestScenesAreAvailable)
	sc.Step(`^the scene "([^"]*)" is available as "([^"]*)"$`, testCtx.theSceneIsAvailableAs)
	sc.Step(`^a mask hint "([^"]*)" for scene "([^"]*)"$`, testCtx.aMaskHintForScene)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)
	sc.Step(`^the mask "([^"]*)" should match scene "([^"]*)"$`, testCtx.theMaskShouldMatchScene)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+)$`, testCtx.theImageShouldHaveSize)
	sc.Step(`^the image "([^"]*)" should have transparent corners$`, testCtx.theImageShouldHaveTransparentCorners)
}
