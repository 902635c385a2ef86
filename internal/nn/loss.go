package nn

import "fmt"

// MSELoss computes the mean squared error between predictions and targets.
type MSELoss struct{}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss() *MSELoss {
	return &MSELoss{}
}

// Forward returns mean((pred - target)^2) over all elements.
func (MSELoss) Forward(pred, target *Tensor) (float32, error) {
	if !pred.SameShape(target) {
		return 0, fmt.Errorf("mse: prediction shape %v, target shape %v", pred.Shape, target.Shape)
	}
	if len(pred.Data) == 0 {
		return 0, nil
	}
	var sum float32
	for i, p := range pred.Data {
		d := p - target.Data[i]
		sum += d * d
	}
	return sum / float32(len(pred.Data)), nil
}

// Backward returns d(loss)/d(pred) = 2 * (pred - target) / N.
func (MSELoss) Backward(pred, target *Tensor) (*Tensor, error) {
	if !pred.SameShape(target) {
		return nil, fmt.Errorf("mse: prediction shape %v, target shape %v", pred.Shape, target.Shape)
	}
	grad := Zeros(pred.Shape...)
	if len(pred.Data) == 0 {
		return grad, nil
	}
	scale := 2 / float32(len(pred.Data))
	for i, p := range pred.Data {
		grad.Data[i] = scale * (p - target.Data[i])
	}
	return grad, nil
}
