package rekognition

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	domai "github.com/bryanwahyu/macrolens/internal/domain/ai"
)

type fakeAPI struct {
	out *rekognition.DetectModerationLabelsOutput
	err error
	in  *rekognition.DetectModerationLabelsInput
}

func (f *fakeAPI) DetectModerationLabels(ctx context.Context, in *rekognition.DetectModerationLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectModerationLabelsOutput, error) {
	f.in = in
	return f.out, f.err
}

const image = "data:image/png;base64,iVBORw0KGgo="

func TestModerateClean(t *testing.T) {
	api := &fakeAPI{out: &rekognition.DetectModerationLabelsOutput{}}
	res, err := NewWithAPI(api, 0).Moderate(context.Background(), image)
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}
	if res.Flagged || len(res.Categories) != 0 {
		t.Errorf("expected clean result, got %+v", res)
	}
	if aws.ToFloat32(api.in.MinConfidence) != defaultMinConfidence {
		t.Errorf("expected default min confidence, got %v", aws.ToFloat32(api.in.MinConfidence))
	}
	if len(api.in.Image.Bytes) == 0 {
		t.Error("expected decoded image bytes to be sent")
	}
}

func TestModerateFlagged(t *testing.T) {
	api := &fakeAPI{out: &rekognition.DetectModerationLabelsOutput{
		ModerationLabels: []types.ModerationLabel{
			{Name: aws.String("Graphic Violence"), ParentName: aws.String("Violence")},
			{Name: aws.String("Violence")},
			{Name: aws.String("Weapons"), ParentName: aws.String("Violence")},
			{Name: aws.String("Drugs")},
		},
	}}
	res, err := NewWithAPI(api, 60).Moderate(context.Background(), image)
	if err != nil {
		t.Fatalf("Moderate: %v", err)
	}
	if !res.Flagged {
		t.Error("expected flagged")
	}
	if want := []string{"drugs", "violence"}; !reflect.DeepEqual(res.Categories, want) {
		t.Errorf("categories = %v, expected %v", res.Categories, want)
	}
	if aws.ToFloat32(api.in.MinConfidence) != 60 {
		t.Errorf("expected configured min confidence")
	}
}

func TestModerateErrors(t *testing.T) {
	if _, err := NewWithAPI(&fakeAPI{}, 0).Moderate(context.Background(), "not a data uri"); err == nil {
		t.Error("expected error for malformed data URI")
	}

	throttle := &fakeAPI{err: &types.ThrottlingException{Message: aws.String("slow down")}}
	_, err := NewWithAPI(throttle, 0).Moderate(context.Background(), image)
	if !errors.Is(err, domai.ErrQuotaExceeded) {
		t.Errorf("expected throttling to map to quota, got %v", err)
	}

	other := &fakeAPI{err: errors.New("access denied")}
	_, err = NewWithAPI(other, 0).Moderate(context.Background(), image)
	if err == nil || errors.Is(err, domai.ErrQuotaExceeded) {
		t.Errorf("expected plain error, got %v", err)
	}
}
