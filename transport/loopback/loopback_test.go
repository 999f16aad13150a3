/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package loopback_test

import (
	"context"
	"testing"
	"time"

	"github.com/sabouaram/rtpsdds/transport/loopback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadDirect(t *testing.T) {
	net := loopback.NewNetwork(10000)
	a := net.NewTransport()
	b := net.NewTransport()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, a.Write(ctx, b.LocalLocator(), []byte("hi")))

	dg, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(dg.Data))
	assert.Equal(t, a.LocalLocator(), dg.From)
}

func TestMulticastFansOutToAllMembers(t *testing.T) {
	net := loopback.NewNetwork(10100)
	group := net.NewTransport().LocalLocator()
	group.Port = 9999

	r1 := net.NewTransport()
	r2 := net.NewTransport()
	net.JoinMulticast(group, r1)
	net.JoinMulticast(group, r2)

	sender := net.NewTransport()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sender.Write(ctx, group, []byte("announce")))

	dg1, err := r1.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "announce", string(dg1.Data))

	dg2, err := r2.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "announce", string(dg2.Data))
}

func TestDropEveryDiscardsPeriodically(t *testing.T) {
	net := loopback.NewNetwork(10200)
	net.DropEvery(2)
	a := net.NewTransport()
	b := net.NewTransport()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, a.Write(ctx, b.LocalLocator(), []byte("one")))
	require.NoError(t, a.Write(ctx, b.LocalLocator(), []byte("two")))
	require.NoError(t, a.Write(ctx, b.LocalLocator(), []byte("three")))

	dg, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "one", string(dg.Data))

	dg, err = b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "three", string(dg.Data))

	_, err = b.Read(ctx)
	require.Error(t, err)
}

func TestReadRespectsContextCancellation(t *testing.T) {
	net := loopback.NewNetwork(10300)
	a := net.NewTransport()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Read(ctx)
	require.Error(t, err)
}
