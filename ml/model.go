// Copyright 2025 The DBQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ml

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TrainConfig holds the classifier hyperparameters.
type TrainConfig struct {
	TestSize     float64
	Seed         int64
	LearningRate float64
	Epochs       int
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		TestSize:     0.2,
		Seed:         42,
		LearningRate: 0.1,
		Epochs:       500,
	}
}

// Scaler standardizes features to zero mean and unit variance.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

func FitScaler(X [][]float64) *Scaler {
	d := len(X[0])
	s := &Scaler{
		Mean: make([]float64, d),
		Std:  make([]float64, d),
	}

	column := make([]float64, len(X))
	for j := 0; j < d; j++ {
		for i := range X {
			column[i] = X[i][j]
		}
		s.Mean[j] = stat.Mean(column, nil)
		s.Std[j] = stat.StdDev(column, nil)
		// Constant columns scale to zero offset instead of dividing by zero.
		if s.Std[j] == 0 || math.IsNaN(s.Std[j]) {
			s.Std[j] = 1
		}
	}
	return s
}

func (s *Scaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = scaled
	}
	return out
}

// LogisticRegression is a binary classifier fitted with full-batch gradient
// descent.
type LogisticRegression struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func (m *LogisticRegression) Fit(X [][]float64, y []int, cfg TrainConfig) {
	n := len(X)
	d := len(X[0])

	flat := make([]float64, 0, n*d)
	for _, row := range X {
		flat = append(flat, row...)
	}
	features := mat.NewDense(n, d, flat)

	target := mat.NewVecDense(n, nil)
	for i, v := range y {
		target.SetVec(i, float64(v))
	}

	weights := mat.NewVecDense(d, nil)
	bias := 0.0

	logits := mat.NewVecDense(n, nil)
	residual := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(d, nil)

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		logits.MulVec(features, weights)

		for i := 0; i < n; i++ {
			p := sigmoid(logits.AtVec(i) + bias)
			residual.SetVec(i, p-target.AtVec(i))
		}

		grad.MulVec(features.T(), residual)
		weights.AddScaledVec(weights, -cfg.LearningRate/float64(n), grad)
		bias -= cfg.LearningRate * mat.Sum(residual) / float64(n)
	}

	m.Weights = make([]float64, d)
	for j := 0; j < d; j++ {
		m.Weights[j] = weights.AtVec(j)
	}
	m.Bias = bias
}

// PredictProba returns the probability of the positive class for one row.
func (m *LogisticRegression) PredictProba(row []float64) float64 {
	z := m.Bias
	for j, w := range m.Weights {
		z += w * row[j]
	}
	return sigmoid(z)
}

func (m *LogisticRegression) Predict(X [][]float64) []int {
	preds := make([]int, len(X))
	for i, row := range X {
		if m.PredictProba(row) >= 0.5 {
			preds[i] = 1
		}
	}
	return preds
}

// TrainTestSplit shuffles deterministically and splits rows into train and
// test partitions.
func TrainTestSplit(X [][]float64, y []int, testSize float64, seed int64) (XTrain, XTest [][]float64, yTrain, yTest []int) {
	n := len(X)
	testN := int(math.Round(float64(n) * testSize))
	if testN < 1 && n > 1 {
		testN = 1
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	for i, idx := range perm {
		if i < n-testN {
			XTrain = append(XTrain, X[idx])
			yTrain = append(yTrain, y[idx])
		} else {
			XTest = append(XTest, X[idx])
			yTest = append(yTest, y[idx])
		}
	}
	return XTrain, XTest, yTrain, yTest
}

// Metrics holds binary classification quality measures on the test split.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

func Evaluate(yTrue, yPred []int) Metrics {
	var tp, fp, fn, correct float64
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			tp++
		case yPred[i] == 1 && yTrue[i] == 0:
			fp++
		case yPred[i] == 0 && yTrue[i] == 1:
			fn++
		}
	}

	m := Metrics{}
	if len(yTrue) > 0 {
		m.Accuracy = correct / float64(len(yTrue))
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
