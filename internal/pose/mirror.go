package pose

// mirrorPairs lists the left/right landmark pairs swapped by Mirror.
var mirrorPairs = [][2]int{
	{LeftEyeInner, RightEyeInner},
	{LeftEye, RightEye},
	{LeftEyeOuter, RightEyeOuter},
	{LeftEar, RightEar},
	{MouthLeft, MouthRight},
	{LeftShoulder, RightShoulder},
	{LeftElbow, RightElbow},
	{LeftWrist, RightWrist},
	{LeftPinky, RightPinky},
	{LeftIndex, RightIndex},
	{LeftThumb, RightThumb},
	{LeftHip, RightHip},
	{LeftKnee, RightKnee},
	{LeftAnkle, RightAnkle},
	{LeftHeel, RightHeel},
	{LeftFootIndex, RightFootIndex},
}

// Mirror flips a pose horizontally (x -> 1-x) and swaps left and right
// landmarks so that a selfie-view pose reads as the subject's own body.
// It is the only coordinate transform in the pipeline; apply it once before
// analysis. The input is not modified.
func Mirror(p Pose) Pose {
	out := p.Clone()
	for i := range out {
		out[i].X = 1 - out[i].X
	}
	if len(out) < NumLandmarks {
		return out
	}
	for _, pair := range mirrorPairs {
		out[pair[0]], out[pair[1]] = out[pair[1]], out[pair[0]]
	}
	return out
}
