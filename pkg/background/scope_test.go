package background

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func randInt() int {
	sign := rand.Intn(100)
	value := rand.Intn(math.MaxInt32)
	if sign < 50 {
		return -value
	}
	return value
}

func producer(s *Scope, id string, data chan<- int) {
	defer s.Done()
	for {
		select {
		case data <- randInt():
		case <-s.Context().Done():
			fmt.Println(id, "done")
			return
		}
	}
}

func consumer(s *Scope, id string, data <-chan int) {
	defer s.Done()
	for {
		select {
		case _, ok := <-data:
			if !ok {
				fmt.Println(id, "exited on closed data channel")
				return
			}
		case <-s.Context().Done():
			fmt.Println(id, "done")
			return
		}
	}
}

func ExampleScope() {
	data1, data2 := make(chan int), make(chan int)

	write1, cancelWrite1 := NewScope()
	read1, cancelRead1 := NewScope()
	write2, cancelWrite2 := NewScope()

	write1.Add(1)
	go producer(write1, "DATA-1 *PRODUCER*", data1)
	read1.Add(1)
	go consumer(read1, "DATA-1 *CONSUMER*", data1)

	write2.Add(1)
	go producer(write2, "DATA-2 *PRODUCER*", data2) // blocked due to no consumer for data2

	time.Sleep(50 * time.Millisecond)

	cancelWrite2()
	cancelWrite1()
	cancelRead1()

	// Output:
	//
	// DATA-2 *PRODUCER* done
	// DATA-1 *PRODUCER* done
	// DATA-1 *CONSUMER* done
}

func ExampleScope_expiredOrActive() {
	scope1, cancel1 := NewScope()
	defer cancel1()
	scope2, cancel2 := NewScope()
	cancel2()
	fmt.Println(scope1.Expired(), scope2.Expired())

	// Output:
	// false true
}

func TestScope_Go(test *testing.T) {
	scope, cancel := NewScope()
	var finished int32
	for i := 0; i < 5; i++ {
		scope.Go(func(ctx context.Context) {
			<-ctx.Done()
			atomic.AddInt32(&finished, 1)
		})
	}
	assert.False(test, scope.Wait(20*time.Millisecond), "members must block until cancel")
	cancel()
	assert.EqualValues(test, 5, atomic.LoadInt32(&finished))
	assert.True(test, scope.Wait(0))
}

func TestScope_Stop(test *testing.T) {
	scope, _ := NewScope()
	scope.Go(func(ctx context.Context) {
		<-ctx.Done()
	})
	scope.Stop()
	assert.True(test, scope.Expired())
	assert.True(test, scope.Wait(time.Second))
}
